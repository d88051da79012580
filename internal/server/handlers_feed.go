package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleFeed upgrades to a websocket and registers the connection as a
// viewer. Clients are not expected to send anything; the read loop only
// notices when the peer goes away.
// GET /ws
func (s *Server) handleFeed(c *gin.Context) {
	if s.deps.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed disabled"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	viewer, err := s.deps.Hub.Register(conn)
	if err != nil {
		s.log.Warn("Viewer rejected", "error", err)
		return
	}

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.deps.Hub.Unregister(viewer.ID)
}
