package web

import (
	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
)

// Event types on the websocket streams.
const (
	EventGaze       = "gaze"
	EventTransition = "transition"
	EventTarget     = "target"
	EventMoving     = "moving"
	EventClear      = "clear"
)

// TargetEvent is a calibration target for browser-side rendering.
type TargetEvent struct {
	Index int     `json:"index"` // -1 for the moving target
	Total int     `json:"total"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// UpdateGaze implements tracking.StateUpdater.
func (s *Server) UpdateGaze(e tracking.GazeEvent) {
	if err := s.gazeHub.BroadcastEvent(EventGaze, e); err != nil {
		log.Debug("gaze event not sent", "error", err)
	}
}

// UpdateCalibration implements tracking.StateUpdater.
func (s *Server) UpdateCalibration(t calibration.Transition) {
	if err := s.calibrationHub.BroadcastEvent(EventTransition, t); err != nil {
		log.Debug("calibration event not sent", "error", err)
	}
}

// ShowTarget implements calibration.Display.
func (s *Server) ShowTarget(index, total int, t calibration.Target) {
	_ = s.calibrationHub.BroadcastEvent(EventTarget, TargetEvent{Index: index, Total: total, X: t.X, Y: t.Y})
	if d := s.forward(); d != nil {
		d.ShowTarget(index, total, t)
	}
}

// ShowMoving implements calibration.Display.
func (s *Server) ShowMoving(t calibration.Target) {
	_ = s.calibrationHub.BroadcastEvent(EventMoving, TargetEvent{Index: -1, X: t.X, Y: t.Y})
	if d := s.forward(); d != nil {
		d.ShowMoving(t)
	}
}

// Clear implements calibration.Display.
func (s *Server) Clear() {
	_ = s.calibrationHub.BroadcastEvent(EventClear, nil)
	if d := s.forward(); d != nil {
		d.Clear()
	}
}
