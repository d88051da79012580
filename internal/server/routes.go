package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	s.engine.GET("/ws", s.handleFeed)

	limited := s.engine.Group("", s.limiter.middleware())
	limited.POST("/webhook", s.handleWebhook)
	limited.POST("/scroll", s.handleScroll)

	v1 := s.engine.Group("/api/v1")
	v1.GET("/channels", s.handleChannels)
	v1.GET("/snapshot", s.handleSnapshot)
	v1.GET("/snapshot/:channel", s.handleChannelSnapshot)
	v1.GET("/report/:channel", s.handleReport)
	v1.POST("/commands", s.limiter.middleware(), s.handleCommand)
}

func (s *Server) handleHealth(c *gin.Context) {
	connected := s.deps.BusConnected()
	status := http.StatusOK
	state := "ok"
	if !connected {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	viewers := 0
	if s.deps.Hub != nil {
		viewers = s.deps.Hub.Count()
	}

	c.JSON(status, gin.H{
		"status":         state,
		"mqtt_connected": connected,
		"viewers":        viewers,
		"uptime":         s.deps.Clock.Since(s.started).Seconds(),
	})
}
