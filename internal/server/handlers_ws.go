package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/mila411/pollen-storm/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser visualization clients connect from any origin
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		status := http.StatusServiceUnavailable
		if reason == LimitReasonRate || reason == LimitReasonPerIP {
			status = http.StatusTooManyRequests
		}
		return c.String(status, "Connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	client, err := s.hub.Connect(conn)
	if err != nil {
		slog.Error("Failed to register client", "error", err)
		_ = conn.Close()
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()
	opened := time.Now()

	// Read pump, blocks until the connection closes. All inbound frames go
	// through the hub so per-connection handling stays sequential.
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.HandleMessage(client, payload)
	}

	s.hub.Disconnect(client)
	metrics.WebSocketConnectionDuration.Observe(time.Since(opened).Seconds())

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
