package server

import (
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// The hub answering its command channel is the one dependency that can
	// wedge; the resolvers never fail outward.
	if s.hub.ClientCount() < 0 {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "hub",
		})
	}
	if s.catalog.Len() == 0 {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "catalog",
		})
	}
	return c.JSON(200, map[string]string{"status": "ready"})
}
