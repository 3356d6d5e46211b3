// eyecue tracks the user's gaze with a webcam and moves the pointer to
// where they are looking.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-eyecue/internal/config"
	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/gyro"
	"github.com/teslashibe/go-eyecue/pkg/pointer"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
	"github.com/teslashibe/go-eyecue/pkg/tracking/detection"
	"github.com/teslashibe/go-eyecue/pkg/web"
)

// metricsInterval is how often the metrics summary is logged.
const metricsInterval = 10 * time.Second

func init() {
	// HighGUI windows must be driven from the main thread.
	runtime.LockOSThread()
}

type options struct {
	configPath    string
	writeConfig   string
	strategy      string
	preset        string
	debug         bool
	debugTracking bool
	calibrate     bool
	noWindow      bool
	noPointer     bool
	listSerial    bool
}

func main() {
	opts := parseFlags()

	if opts.listSerial {
		ports, err := gyro.Ports()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)
	log.Verbose = opts.debugTracking

	if opts.writeConfig != "" {
		if err := config.Save(opts.writeConfig, cfg); err != nil {
			log.Error("write config", "error", err)
			os.Exit(1)
		}
		log.Info("config written", "path", opts.writeConfig)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("eyecue stopped", "error", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file")
	flag.StringVar(&o.writeConfig, "write-config", "", "Write the effective config to this file and exit")
	flag.StringVar(&o.strategy, "strategy", "", "Gaze strategy: sphere or regression (overrides config)")
	flag.StringVar(&o.preset, "preset", "", "Tracking preset: steady or responsive")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&o.debugTracking, "debug-tracking", false, "Log every frame (very verbose)")
	flag.BoolVar(&o.calibrate, "calibrate", false, "Start a calibration at launch")
	flag.BoolVar(&o.noWindow, "no-window", false, "Do not open the calibration window (web API only)")
	flag.BoolVar(&o.noPointer, "no-pointer", false, "Start with pointer movement disabled")
	flag.BoolVar(&o.listSerial, "list-serial", false, "List serial ports for the gyro and exit")
	flag.Parse()
	return o
}

func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}

	switch o.preset {
	case "":
	case "steady":
		cfg.Tracking.Smoothing = tracking.SteadyConfig().Smoothing
		cfg.Tracking.Gaze.SteadyAlpha = tracking.SteadyConfig().Gaze.SteadyAlpha
	case "responsive":
		r := tracking.ResponsiveConfig()
		cfg.Tracking.FrameInterval = r.FrameInterval
		cfg.Tracking.Smoothing = r.Smoothing
		cfg.Tracking.Gaze.SteadyAlpha = r.Gaze.SteadyAlpha
	default:
		return cfg, fmt.Errorf("unknown preset %q", o.preset)
	}

	if o.strategy != "" {
		k, err := tracking.ParseStrategy(o.strategy)
		if err != nil {
			return cfg, err
		}
		cfg.Tracking.Strategy = k
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if o.noPointer {
		cfg.Tracking.PointerEnabled = false
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	if cfg.Tracking.Screen.Width == 0 || cfg.Tracking.Screen.Height == 0 {
		w, h := pointer.ScreenSize()
		cfg.Tracking.Screen.Width, cfg.Tracking.Screen.Height = w, h
		log.Info("screen size from OS", "width", w, "height", h)
	}

	// Camera
	var device any = cfg.Camera.Device
	if idx, ok := cfg.Camera.CameraIndex(); ok {
		device = idx
	}
	cam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("open camera %v: %w", device, err)
	}
	defer cam.Close()
	if cfg.Camera.Width > 0 && cfg.Camera.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Camera.Width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Camera.Height))
	}

	// Perception
	var (
		det   detection.Detector
		lm    detection.Landmarker
		frame *zoomSource
	)
	switch cfg.Tracking.Strategy {
	case tracking.StrategyRegression:
		yunet, err := detection.NewYuNet(cfg.Tracking.Detection)
		if err != nil {
			return fmt.Errorf("landmarker: %w", err)
		}
		defer yunet.Close()
		lm = yunet
		frame = newZoomSource(cam, 1, 0, 0)
	default:
		contour := detection.NewContour(cfg.Tracking.Detection)
		defer contour.Close()
		det = contour
		gz := cfg.Tracking.Gaze
		frame = newZoomSource(cam, gz.ZoomFactor, gz.FrameWidth, gz.FrameHeight)
	}
	defer frame.Close()

	g, gctx := errgroup.WithContext(ctx)

	// Head rotation
	var head tracking.HeadSource
	var reader *gyro.Reader
	if cfg.Gyro.Port != "" {
		port, err := gyro.Open(cfg.Gyro.Port, cfg.Gyro.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		reader = gyro.NewReader()
		head = reader
		g.Go(func() error {
			if err := reader.Run(gctx, port); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("gyro stopped", "error", err)
			}
			return nil
		})
		log.Info("gyro enabled", "port", cfg.Gyro.Port, "baud", cfg.Gyro.Baud)
	}

	session, err := tracking.NewSessionFor(cfg.Tracking, det, lm, head)
	if err != nil {
		return err
	}
	tracker := tracking.New(cfg.Tracking, frame, session, pointer.NewSystem())
	if reader != nil {
		tracker.SetHead(reader)
	}

	server := web.NewServer(cfg.Web, tracker)
	tracker.SetStateUpdater(server)

	var win *calibWindow
	if !opts.noWindow {
		win = newCalibWindow(tracker, cfg.Tracking.Screen.Width, cfg.Tracking.Screen.Height)
		server.SetDisplay(win)
	}

	g.Go(func() error { return tracker.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return logMetrics(gctx, tracker) })

	if opts.calibrate {
		g.Go(func() error {
			for !tracker.IsRunning() {
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(10 * time.Millisecond):
				}
			}
			if _, err := tracker.StartCalibration(gctx, server); err != nil {
				log.Warn("launch calibration", "error", err)
			}
			return nil
		})
	}

	if win != nil {
		win.Loop(gctx)
	}
	return g.Wait()
}

func logMetrics(ctx context.Context, tracker *tracking.Tracker) error {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := tracker.Metrics().Summary()
			log.Info("tracking metrics",
				"fps", fmt.Sprintf("%.1f", s.FPS),
				"detection_rate", fmt.Sprintf("%.2f", s.DetectionRate),
				"jitter_px", fmt.Sprintf("%.2f", s.PositionJitter),
				"latency_ms", fmt.Sprintf("%.1f", s.AvgDetectionMS))
		}
	}
}
