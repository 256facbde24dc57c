package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Service info
	s.echo.GET("/", s.handleRoot)

	// Data API
	s.echo.GET("/regions", s.handleRegions)
	s.echo.GET("/data/current", s.handleCurrentData)
	s.echo.GET("/predict", s.handlePredict)
	s.echo.GET("/historical", s.handleHistorical)

	// Real-time stream
	s.echo.GET("/ws", s.handleWebSocket)
}
