// Package server exposes the HTTP and WebSocket surface: the region catalog,
// on-demand snapshot and prediction reads, health and metrics endpoints, and
// the real-time stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mila411/pollen-storm/internal/catalog"
	"github.com/mila411/pollen-storm/internal/config"
	"github.com/mila411/pollen-storm/internal/hub"
	"github.com/mila411/pollen-storm/internal/resolver"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	catalog     *catalog.Catalog
	snapshots   *resolver.Snapshots
	predictions *resolver.Predictions
	hub         *hub.Hub
	limits      *ConnectionLimits
	startTime   time.Time
}

func NewServer(cfg *config.Config, cat *catalog.Catalog, snapshots *resolver.Snapshots, predictions *resolver.Predictions, h *hub.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		catalog:     cat,
		snapshots:   snapshots,
		predictions: predictions,
		hub:         h,
		limits:      NewConnectionLimits(cfg.MaxClients, cfg.MaxClientsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
