package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/hub"
	"github.com/teslashibe/go-eyecue/pkg/screen"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
)

// handleHealth is the liveness probe
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the tracker state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Status())
}

// handleMetrics returns the frame metrics summary
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(s.backend.Metrics().Summary())
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.backend.GetTuningParams())
}

// handleSetTuning applies the non-zero fields of the body and returns the
// resulting parameters
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tuning body: " + err.Error()})
	}
	s.backend.SetTuningParams(params)
	log.Info("tuning updated", "smoothing", params.Smoothing, "frame_hz", params.FrameHz)
	return c.JSON(s.backend.GetTuningParams())
}

// OutcomeView summarizes the last successful calibration.
type OutcomeView struct {
	AnchorSamples int                    `json:"anchor_samples"`
	MovingSamples int                    `json:"moving_samples"`
	Rejected      int                    `json:"rejected"`
	Report        *calibration.FitReport `json:"report,omitempty"`
	Geometry      *screen.Geometry       `json:"geometry,omitempty"`
}

// CalibrationView is the GET /api/calibration body.
type CalibrationView struct {
	Calibrating bool                 `json:"calibrating"`
	Session     *calibration.Session `json:"session,omitempty"`
	Last        *OutcomeView         `json:"last,omitempty"`
}

func (s *Server) handleCalibration(c *fiber.Ctx) error {
	view := CalibrationView{Calibrating: s.backend.Status().Calibrating}
	if sess, ok := s.backend.Sessions().Get(); ok {
		view.Session = &sess
	}
	if out, ok := s.backend.LastCalibration(); ok {
		view.Last = &OutcomeView{
			AnchorSamples: out.Result.AnchorSamples,
			MovingSamples: out.Result.MovingSamples,
			Rejected:      out.Result.Rejected,
			Report:        out.Report,
			Geometry:      out.Geometry,
		}
	}
	return c.JSON(view)
}

// handleCalibrationStart starts a calibration driven by the confirm and
// abort endpoints; targets go out on /ws/calibration
func (s *Server) handleCalibrationStart(c *fiber.Ctx) error {
	if _, err := s.backend.StartCalibration(s.baseContext(), s); err != nil {
		if errors.Is(err, tracking.ErrCalibrating) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	log.Info("calibration started via API", "ip", c.IP())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": true})
}

func (s *Server) handleCalibrationConfirm(c *fiber.Ctx) error {
	if !s.backend.ConfirmCalibration() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no calibration running"})
	}
	return c.JSON(fiber.Map{"confirmed": true})
}

// AbortRequest is the optional body of POST /api/calibration/abort.
type AbortRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCalibrationAbort(c *fiber.Ctx) error {
	var req AbortRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid abort body: " + err.Error()})
		}
	}
	if req.Reason == "" {
		req.Reason = "aborted via API"
	}
	if !s.backend.AbortCalibration(req.Reason) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no calibration running"})
	}
	return c.JSON(fiber.Map{"aborted": true, "reason": req.Reason})
}

// PointerRequest is the body of POST /api/pointer.
type PointerRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handlePointer(c *fiber.Ctx) error {
	var req PointerRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": `body must be {"enabled": true|false}`})
	}
	s.backend.Pointer().SetEnabled(*req.Enabled)
	log.Info("pointer toggled", "enabled", *req.Enabled)
	return c.JSON(fiber.Map{"enabled": s.backend.Pointer().Enabled()})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	s.backend.Reset()
	return c.JSON(fiber.Map{"reset": true})
}

// handleWS attaches a websocket connection to h until it closes
func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client, ok := hub.NewClient(h, conn)
		if !ok {
			return
		}
		client.Run()
	}
}
