// Package gyro reads head-rotation angles from a serial IMU.
//
// The device writes one reading per line, either "h,v" in degrees or a JSON
// object {"h": .., "v": ..}. Blank and unparseable lines are skipped.
package gyro

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// DefaultBaud is the IMU firmware's line rate.
const DefaultBaud = 115200

// ErrBadReading is returned by ParseLine for malformed lines.
var ErrBadReading = errors.New("gyro: malformed reading")

// Reading is one head orientation sample in degrees.
type Reading struct {
	H float64 `json:"h"`
	V float64 `json:"v"`
}

// ParseLine decodes one device line.
func ParseLine(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Reading{}, ErrBadReading
	}
	if strings.HasPrefix(line, "{") {
		var raw struct {
			H *float64 `json:"h"`
			V *float64 `json:"v"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return Reading{}, fmt.Errorf("%w: %v", ErrBadReading, err)
		}
		if raw.H == nil || raw.V == nil {
			return Reading{}, fmt.Errorf("%w: missing h or v", ErrBadReading)
		}
		return Reading{H: *raw.H, V: *raw.V}, nil
	}

	h, v, ok := strings.Cut(line, ",")
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrBadReading, line)
	}
	hv, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrBadReading, err)
	}
	vv, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrBadReading, err)
	}
	return Reading{H: hv, V: vv}, nil
}

// Reader tracks the latest reading and a neutral orientation captured at
// calibration time.
type Reader struct {
	mu       sync.RWMutex
	latest   Reading
	center   Reading
	has      bool
	updated  time.Time
	readings int
	skipped  int
}

// NewReader creates a reader with no data.
func NewReader() *Reader { return &Reader{} }

// Open opens a serial port at baud (DefaultBaud if zero).
func Open(port string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("gyro: open %s: %w", port, err)
	}
	return p, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Run consumes lines from src until it fails or ctx is done. If src is an
// io.Closer it is closed on cancellation to unblock the read.
func (r *Reader) Run(ctx context.Context, src io.Reader) error {
	if c, ok := src.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	br := bufio.NewReader(src)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			r.ingest(line)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("gyro: read: %w", err)
		}
	}
}

func (r *Reader) ingest(line string) {
	rd, err := ParseLine(line)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.skipped++
		log.Track("gyro line skipped", "line", strings.TrimSpace(line), "error", err)
		return
	}
	r.latest = rd
	r.has = true
	r.updated = time.Now()
	r.readings++
}

// Latest returns the newest reading.
func (r *Reader) Latest() (Reading, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.has
}

// Recenter records the latest reading as the neutral orientation.
func (r *Reader) Recenter() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center = r.latest
}

// Rotation returns the head rotation for the projector. Without data it is
// the zero rotation.
func (r *Reader) Rotation() screen.HeadRotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.has {
		return screen.HeadRotation{}
	}
	return screen.HeadRotation{
		H:       r.latest.H,
		V:       r.latest.V,
		CenterH: r.center.H,
		CenterV: r.center.V,
	}
}

// Stats returns how many lines were accepted and skipped.
func (r *Reader) Stats() (readings, skipped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readings, r.skipped
}
