package gaze

// Config holds the eyeball model parameters.
type Config struct {
	// Frame (after digital zoom, as seen by the detector)
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`

	// Camera
	FocalLength float64 `yaml:"focal_length"` // pixels; 0 = derive from zoom and FOV
	ZoomFactor  float64 `yaml:"zoom_factor"`  // digital zoom applied before detection
	BaseFOVDeg  float64 `yaml:"base_fov_deg"` // horizontal FOV of the physical camera

	// Eye
	EyeRadiusMM float64 `yaml:"eye_radius_mm"` // rotation center to pupil surface
	InitDepthMM float64 `yaml:"init_depth_mm"` // initial eye-to-camera distance guess

	// Center estimate smoothing (EMA alpha)
	WarmupAlpha  float64 `yaml:"warmup_alpha"`  // first WarmupFrames updates
	SteadyAlpha  float64 `yaml:"steady_alpha"`  // afterwards
	WarmupFrames int     `yaml:"warmup_frames"` // updates using WarmupAlpha
}

// DefaultConfig returns parameters for a 640x480 webcam behind an 8x digital
// zoom, viewed from roughly 30 cm.
func DefaultConfig() Config {
	return Config{
		FrameWidth:  640,
		FrameHeight: 480,

		FocalLength: 0,
		ZoomFactor:  8,
		BaseFOVDeg:  60,

		EyeRadiusMM: 12,
		InitDepthMM: 300,

		WarmupAlpha:  0.15,
		SteadyAlpha:  0.03,
		WarmupFrames: 40,
	}
}
