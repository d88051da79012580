package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"telemetry-bridge/internal/command"
	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/services"
	"telemetry-bridge/internal/stats"
)

// GET /api/v1/channels
func (s *Server) handleChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": models.Channels()})
}

// GET /api/v1/snapshot
func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"channels":     s.deps.Reports.Status(),
		"generated_at": s.deps.Clock.Now().UTC(),
	})
}

// GET /api/v1/snapshot/:channel
func (s *Server) handleChannelSnapshot(c *gin.Context) {
	st, err := s.deps.Reports.Latest(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleReport computes window statistics for one channel
// GET /api/v1/report/:channel?rows=N
func (s *Server) handleReport(c *gin.Context) {
	rows := 0
	if raw := c.Query("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rows"})
			return
		}
		rows = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	report, err := s.deps.Reports.Report(ctx, c.Param("channel"), rows)
	switch {
	case errors.Is(err, services.ErrUnknownChannel):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, stats.ErrEmptyWindow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, history.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history unavailable"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, report)
	}
}

// commandRequest is either a structured command or chat-style text
type commandRequest struct {
	Channel   string        `json:"channel"`
	Action    models.Action `json:"action"`
	Magnitude *float64      `json:"magnitude"`
	Text      string        `json:"text"`
}

// handleCommand publishes one actuator command
// POST /api/v1/commands
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	cmd := models.Command{Channel: req.Channel, Action: req.Action, Magnitude: req.Magnitude}
	if req.Text != "" {
		decoded, err := command.DecodeStrict(req.Text)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cmd = decoded
	}

	s.dispatch(c, cmd, "api")
}

type scrollRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// handleScroll sets the grow light level from the dashboard slider
// POST /scroll
func (s *Server) handleScroll(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	s.dispatch(c, models.Command{
		Channel:   models.ChannelGrowLight,
		Action:    models.ActionSet,
		Magnitude: req.Value,
	}, "slider")
}

func (s *Server) dispatch(c *gin.Context, cmd models.Command, source string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	d, err := s.deps.Dispatcher.Dispatch(ctx, cmd, source)
	switch {
	case errors.Is(err, services.ErrInvalidCommand):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, d)
	}
}
