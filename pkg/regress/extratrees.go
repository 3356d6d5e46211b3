package regress

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ExtraTreesConfig controls the tree ensemble.
type ExtraTreesConfig struct {
	Trees           int    `yaml:"trees"`
	MaxDepth        int    `yaml:"max_depth"`         // 0 = unlimited
	MinSamplesSplit int    `yaml:"min_samples_split"` // nodes smaller than this become leaves
	Seed            uint64 `yaml:"seed"`
	Workers         int    `yaml:"workers"` // 0 = GOMAXPROCS
}

// DefaultExtraTreesConfig returns 200 trees of depth at most 18.
func DefaultExtraTreesConfig() ExtraTreesConfig {
	return ExtraTreesConfig{
		Trees:           200,
		MaxDepth:        18,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// ExtraTrees is an ensemble of extremely randomized regression trees. Every
// tree sees the full training set; at each node one random threshold is drawn
// per feature and the split with the largest variance reduction wins.
type ExtraTrees struct {
	cfg ExtraTreesConfig

	dim         int
	trees       []tree
	importances []float64
}

// NewExtraTrees creates an unfitted ensemble.
func NewExtraTrees(cfg ExtraTreesConfig) *ExtraTrees {
	if cfg.Trees <= 0 {
		cfg.Trees = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	return &ExtraTrees{cfg: cfg}
}

type node struct {
	feature   int // -1 for leaves
	threshold float64
	left      int32
	right     int32
	value     float64
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Fit grows the ensemble. Trees are built concurrently; results are
// deterministic for a given seed.
func (e *ExtraTrees) Fit(X [][]float64, y []float64) error {
	dim, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]tree, e.cfg.Trees)
	imps := make([][]float64, e.cfg.Trees)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			b := &builder{
				X:        X,
				y:        y,
				dim:      dim,
				maxDepth: e.cfg.MaxDepth,
				minSplit: e.cfg.MinSamplesSplit,
				rng:      rand.New(rand.NewPCG(e.cfg.Seed, uint64(i))),
				imp:      make([]float64, dim),
			}
			idx := make([]int, len(X))
			for j := range idx {
				idx[j] = j
			}
			b.grow(idx, 0)
			trees[i] = tree{nodes: b.nodes}
			imps[i] = normalize(b.imp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("extra trees: %w", err)
	}

	importances := make([]float64, dim)
	for _, imp := range imps {
		for j, v := range imp {
			importances[j] += v
		}
	}

	e.dim = dim
	e.trees = trees
	e.importances = normalize(importances)
	return nil
}

// Predict averages the trees.
func (e *ExtraTrees) Predict(x []float64) (float64, error) {
	if e.trees == nil {
		return 0, ErrNotFitted
	}
	if len(x) != e.dim {
		return 0, fmt.Errorf("%w: got %d columns, want %d", ErrDimensionMismatch, len(x), e.dim)
	}
	var sum float64
	for i := range e.trees {
		sum += e.trees[i].predict(x)
	}
	return sum / float64(len(e.trees)), nil
}

// Importances returns the impurity-based feature importances, summing to 1
// (all zero when no split was made).
func (e *ExtraTrees) Importances() []float64 {
	out := make([]float64, len(e.importances))
	copy(out, e.importances)
	return out
}

// Size returns the number of fitted trees.
func (e *ExtraTrees) Size() int { return len(e.trees) }

type builder struct {
	X        [][]float64
	y        []float64
	dim      int
	maxDepth int
	minSplit int
	rng      *rand.Rand

	nodes []node
	imp   []float64
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int32 {
	at := int32(len(b.nodes))
	mean, sse := meanSSE(b.y, idx)
	b.nodes = append(b.nodes, node{feature: -1, value: mean})

	if len(idx) < b.minSplit || sse <= 0 || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return at
	}

	feature, threshold, gain, ok := b.split(idx, sse)
	if !ok {
		return at
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.imp[feature] += gain
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = node{feature: feature, threshold: threshold, left: l, right: r, value: mean}
	return at
}

// split draws one uniform threshold per non-constant feature and keeps the
// one with the largest SSE reduction.
func (b *builder) split(idx []int, sse float64) (feature int, threshold, gain float64, ok bool) {
	for _, f := range b.rng.Perm(b.dim) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := b.X[i][f]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo {
			continue
		}
		thr := lo + b.rng.Float64()*(hi-lo)
		if thr >= hi {
			thr = lo
		}

		var nl, nr int
		var sl, sr, ql, qr float64
		for _, i := range idx {
			v := b.y[i]
			if b.X[i][f] <= thr {
				nl++
				sl += v
				ql += v * v
			} else {
				nr++
				sr += v
				qr += v * v
			}
		}
		childSSE := (ql - sl*sl/float64(nl)) + (qr - sr*sr/float64(nr))
		g := sse - childSSE
		if !ok || g > gain {
			feature, threshold, gain, ok = f, thr, g, true
		}
	}
	return feature, threshold, math.Max(gain, 0), ok
}

func meanSSE(y []float64, idx []int) (mean, sse float64) {
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	out := make([]float64, len(v))
	if sum <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
