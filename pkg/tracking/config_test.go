package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-eyecue/pkg/screen"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Strategy != StrategySphere {
		t.Errorf("Expected sphere strategy, got %q", cfg.Strategy)
	}
	if cfg.Smoothing != 0.28 {
		t.Errorf("Expected Smoothing=0.28, got %v", cfg.Smoothing)
	}
	if cfg.FrameInterval != 33*time.Millisecond {
		t.Errorf("Expected FrameInterval=33ms, got %v", cfg.FrameInterval)
	}
	if cfg.Screen.Width != 1920 || cfg.Screen.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", cfg.Screen.Width, cfg.Screen.Height)
	}
}

func TestPresets_SmoothingValidRange(t *testing.T) {
	// All configs should have Smoothing in valid range (0, 1]
	configs := []struct {
		name string
		cfg  Config
	}{
		{"Default", DefaultConfig()},
		{"Steady", SteadyConfig()},
		{"Responsive", ResponsiveConfig()},
	}

	for _, tc := range configs {
		if tc.cfg.Smoothing <= 0 || tc.cfg.Smoothing > 1 {
			t.Errorf("%s: Smoothing=%v out of range (0, 1]", tc.name, tc.cfg.Smoothing)
		}
		if tc.cfg.FrameInterval <= 0 {
			t.Errorf("%s: FrameInterval=%v must be positive", tc.name, tc.cfg.FrameInterval)
		}
	}

	if SteadyConfig().Smoothing >= DefaultConfig().Smoothing {
		t.Error("Steady should smooth more than default")
	}
	if ResponsiveConfig().Smoothing <= DefaultConfig().Smoothing {
		t.Error("Responsive should smooth less than default")
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    StrategyKind
		wantErr bool
	}{
		{"", StrategySphere, false},
		{"sphere", StrategySphere, false},
		{"regression", StrategyRegression, false},
		{"mediapipe", "", true},
	}
	for _, tc := range tests {
		got, err := ParseStrategy(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestScreenConfig_DistancePx(t *testing.T) {
	sc := ScreenConfig{Width: 1920, DistanceMM: 600, PxPerMM: 3.5}
	if got := sc.DistancePx(); got != 2100 {
		t.Errorf("DistancePx = %v, want 2100", got)
	}

	sc.DistanceMM = 0
	want := 960 / math.Tan(screen.Radians(30))
	if got := sc.DistancePx(); math.Abs(got-want) > 1e-9 {
		t.Errorf("DistancePx from FOV = %v, want %v", got, want)
	}
}

func TestCalibrationConfig_PerStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Screen.Width, cfg.Screen.Height = 1280, 720

	sphere := cfg.calibrationConfig()
	if sphere.MovingDuration != 0 {
		t.Errorf("sphere calibration should skip the moving target, got %v", sphere.MovingDuration)
	}
	if sphere.ScreenWidth != 1280 || sphere.ScreenHeight != 720 {
		t.Errorf("screen = %dx%d, want 1280x720", sphere.ScreenWidth, sphere.ScreenHeight)
	}

	cfg.Strategy = StrategyRegression
	if reg := cfg.calibrationConfig(); reg.MovingDuration == 0 {
		t.Error("regression calibration should keep the moving target")
	}
}
