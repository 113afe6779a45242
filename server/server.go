// Package server exposes the invocation pipeline over HTTP. It carries three
// routes: POST /invocations runs one exchange, GET /sessions lists an actor's
// sessions, and GET /ping answers health probes.
package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/pipeline"
)

// Handler routes HTTP requests to the pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	logger   logging.Logger
}

// Options configures a Handler.
type Options struct {
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// NewHandler creates a Handler around the given pipeline.
func NewHandler(p *pipeline.Pipeline, optFns ...func(o *Options)) *Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Handler{pipeline: p, logger: opts.Logger}
}

// RegisterRoutes registers the handler's routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/invocations", h.Invoke)
	e.GET("/sessions", h.ListSessions)
	e.GET("/ping", h.Ping)
}

// NewServer builds a ready-to-run echo instance with the standard middleware
// and the handler's routes registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)
	return e
}

// InvokeRequest is the body of POST /invocations.
type InvokeRequest struct {
	ActorID   string `json:"actor_id"`
	SessionID string `json:"session_id,omitempty"`
	InputText string `json:"input_text"`
}

// Invoke runs one exchange.
// POST /invocations
func (h *Handler) Invoke(c echo.Context) error {
	ctx := c.Request().Context()

	var req InvokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ActorID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id is required"})
	}
	if req.InputText == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "input_text is required"})
	}

	resp, err := h.pipeline.InvokeTurn(ctx, pipeline.TurnRequest{
		ActorID:   req.ActorID,
		SessionID: req.SessionID,
		InputText: req.InputText,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// ListSessions lists the actor's sessions, most recent first.
// GET /sessions?actor_id=...
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := c.QueryParam("actor_id")
	if actorID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id is required"})
	}

	sessions, err := h.pipeline.ListSessions(ctx, actorID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// Ping answers health probes.
// GET /ping
func (h *Handler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// writeError maps pipeline errors onto HTTP statuses. Raw internal detail is
// logged, never returned to the client.
func (h *Handler) writeError(c echo.Context, err error) error {
	var status int
	var msg string
	switch {
	case errors.Is(err, core.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrSessionNotFound):
		status, msg = http.StatusNotFound, "session not found"
	case errors.Is(err, core.ErrConflict):
		status, msg = http.StatusConflict, "session is busy, retry later"
	case errors.Is(err, core.ErrTimeout):
		status, msg = http.StatusGatewayTimeout, "invocation timed out"
	case errors.Is(err, core.ErrAgentInvocation):
		status, msg = http.StatusBadGateway, "agent invocation failed"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		h.logger.Error("request failed", "status", status, "error", err.Error())
	}
	return c.JSON(status, map[string]string{"error": msg})
}
