package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/logging"
	"github.com/mila411/pollen-storm/internal/metrics"
)

const (
	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
	commandChannelSize = 256
)

// Connection is one live client. It is owned exclusively by the hub: created
// on connect, mutated only by commands arriving on that same connection,
// destroyed on disconnect.
type Connection struct {
	ID            uuid.UUID
	OpenedAt      time.Time
	writer        *clientWriter
	subscriptions map[string]struct{}
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type connectCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	replyChannel chan *Connection
}

type disconnectCmd struct {
	baseHubCmd
	conn *Connection
}

type inboundCmd struct {
	baseHubCmd
	conn    *Connection
	payload []byte
}

type broadcastCmd struct {
	baseHubCmd
	msgType  string
	regionID string // empty means global
	data     any
}

type updateStateCmd struct {
	baseHubCmd
	snapshots   map[string]domain.Snapshot
	predictions map[string]domain.Prediction
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type subscriptionCountCmd struct {
	baseHubCmd
	conn         *Connection
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the set of live connections and their subscription state, and
// fans scheduler updates out to the matching subset.
type Hub struct {
	cmdCh             chan hubCmd
	clock             clockwork.Clock
	connections       map[uuid.UUID]*Connection
	latestSnapshots   map[string]domain.Snapshot
	latestPredictions map[string]domain.Prediction
	done              chan struct{}
}

// New creates a hub and starts its actor goroutine.
func New(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:             make(chan hubCmd, commandChannelSize),
		clock:             clock,
		connections:       make(map[uuid.UUID]*Connection),
		latestSnapshots:   make(map[string]domain.Snapshot),
		latestPredictions: make(map[string]domain.Prediction),
		done:              make(chan struct{}),
	}
	go h.run()
	return h
}

// Connect registers a new connection with an empty subscription set. The new
// client immediately receives a welcome acknowledgment and a full
// current-state push, so late joiners are never blank.
func (h *Hub) Connect(conn *websocket.Conn) (*Connection, error) {
	replyCh := make(chan *Connection, 1)
	h.cmdCh <- connectCmd{connection: conn, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case c := <-replyCh:
		return c, nil
	case <-timer.Chan():
		return nil, fmt.Errorf("connect command timed out after %v", commandTimeout)
	}
}

// Disconnect removes a connection; no further delivery is attempted.
func (h *Hub) Disconnect(c *Connection) {
	h.cmdCh <- disconnectCmd{conn: c}
}

// HandleMessage processes one inbound frame from a connection. Callers feed
// frames from a single read loop per connection, so per-connection handling
// stays strictly sequential.
func (h *Hub) HandleMessage(c *Connection, payload []byte) {
	h.cmdCh <- inboundCmd{conn: c, payload: payload}
}

// PublishSnapshots caches the latest snapshot set and pushes a region-scoped
// pollenUpdate plus a particleUpdate for every region, in the order produced.
func (h *Hub) PublishSnapshots(snapshots map[string]domain.Snapshot) {
	h.cmdCh <- updateStateCmd{snapshots: snapshots}
	for _, id := range sortedKeys(snapshots) {
		snap := snapshots[id]
		h.cmdCh <- broadcastCmd{msgType: TypePollenUpdate, regionID: id, data: snap}
		h.cmdCh <- broadcastCmd{msgType: TypeParticleUpdate, regionID: id, data: particleData(snap)}
	}
}

// PublishPredictions caches the latest prediction set and pushes a
// region-scoped predictionUpdate for every region.
func (h *Hub) PublishPredictions(predictions map[string]domain.Prediction) {
	h.cmdCh <- updateStateCmd{predictions: predictions}
	for _, id := range sortedKeys(predictions) {
		h.cmdCh <- broadcastCmd{msgType: TypePredictionUpdate, regionID: id, data: predictions[id]}
	}
}

// Broadcast delivers a message to every open connection (regionID empty) or
// to the subscribers of one region.
func (h *Hub) Broadcast(msgType, regionID string, data any) {
	h.cmdCh <- broadcastCmd{msgType: msgType, regionID: regionID, data: data}
}

// ClientCount returns the number of open connections, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// SubscriptionCount returns the size of one connection's subscription set,
// or -1 on timeout.
func (h *Hub) SubscriptionCount(c *Connection) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- subscriptionCountCmd{conn: c, replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		return -1
	}
}

// Stop shuts down the hub, closing all client connections. Blocks until the
// actor goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()
			h.closeAll("hub panic")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case connectCmd:
			h.handleConnect(c)
		case disconnectCmd:
			h.handleDisconnect(c.conn)
		case inboundCmd:
			h.handleInbound(c)
		case broadcastCmd:
			h.handleBroadcast(c)
		case updateStateCmd:
			h.handleUpdateState(c)
		case clientCountCmd:
			c.replyChannel <- len(h.connections)
		case subscriptionCountCmd:
			h.handleSubscriptionCount(c)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleConnect(c connectCmd) {
	conn := &Connection{
		ID:            uuid.New(),
		OpenedAt:      h.clock.Now(),
		writer:        newClientWriter(c.connection, h.clock),
		subscriptions: make(map[string]struct{}),
	}
	h.connections[conn.ID] = conn
	metrics.HubConnectedClients.Set(float64(len(h.connections)))

	welcome := newEnvelope(TypeConnected, map[string]string{"connectionId": conn.ID.String()}, h.clock.Now())
	welcome.Message = "Connected to PollenStorm real-time stream"
	h.send(conn, welcome)

	h.send(conn, newEnvelope(TypeInitialPollenData, snapshotList(h.latestSnapshots), h.clock.Now()))
	h.send(conn, newEnvelope(TypeInitialPredictions, predictionList(h.latestPredictions), h.clock.Now()))

	logging.WithConnection(conn.ID.String()).Debug("Client connected", "total_clients", len(h.connections))
	c.replyChannel <- conn
}

func (h *Hub) handleDisconnect(conn *Connection) {
	if _, exists := h.connections[conn.ID]; !exists {
		return
	}

	conn.writer.stop()
	metrics.HubSubscriptions.Sub(float64(len(conn.subscriptions)))
	delete(h.connections, conn.ID)
	metrics.HubConnectedClients.Set(float64(len(h.connections)))

	logging.WithConnection(conn.ID.String()).Debug("Client disconnected", "remaining_clients", len(h.connections))
}

func (h *Hub) handleInbound(c inboundCmd) {
	if _, exists := h.connections[c.conn.ID]; !exists {
		return
	}

	cmd, err := parseClientCommand(c.payload)
	if err != nil {
		// A bad command is answered on the same connection only; the
		// connection stays open.
		metrics.HubMalformedCommands.Inc()
		h.send(c.conn, newErrorEnvelope(err.Error(), h.clock.Now()))
		return
	}

	switch v := cmd.(type) {
	case subscribeCommand:
		if _, dup := c.conn.subscriptions[v.RegionID]; !dup {
			c.conn.subscriptions[v.RegionID] = struct{}{}
			metrics.HubSubscriptions.Inc()
		}
		h.send(c.conn, newEnvelope(TypeSubscribed, map[string]string{"regionId": v.RegionID}, h.clock.Now()))
	case unsubscribeCommand:
		if _, ok := c.conn.subscriptions[v.RegionID]; ok {
			delete(c.conn.subscriptions, v.RegionID)
			metrics.HubSubscriptions.Dec()
		}
		h.send(c.conn, newEnvelope(TypeUnsubscribed, map[string]string{"regionId": v.RegionID}, h.clock.Now()))
	case pingCommand:
		h.send(c.conn, newEnvelope(TypePong, nil, h.clock.Now()))
	}
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	data, err := json.Marshal(newEnvelope(c.msgType, c.data, h.clock.Now()))
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "type", c.msgType, "error", err)
		return
	}

	var slow []*Connection
	for _, conn := range h.connections {
		if c.regionID != "" {
			if _, subscribed := conn.subscriptions[c.regionID]; !subscribed {
				continue
			}
		}
		select {
		case conn.writer.sendChannel <- data:
			metrics.HubMessagesSent.WithLabelValues(c.msgType).Inc()
		default:
			slow = append(slow, conn)
		}
	}

	// A client that cannot drain its buffer is implicitly disconnected.
	for _, conn := range slow {
		logging.WithConnection(conn.ID.String()).Warn("Disconnecting slow client")
		metrics.HubSlowClientsEvicted.Inc()
		h.handleDisconnect(conn)
	}
}

func (h *Hub) handleUpdateState(c updateStateCmd) {
	for id, snap := range c.snapshots {
		h.latestSnapshots[id] = snap
	}
	for id, pred := range c.predictions {
		h.latestPredictions[id] = pred
	}
}

func (h *Hub) handleSubscriptionCount(c subscriptionCountCmd) {
	conn, exists := h.connections[c.conn.ID]
	if !exists {
		c.replyChannel <- 0
		return
	}
	c.replyChannel <- len(conn.subscriptions)
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.connections))
	h.closeAll("Server shutting down")
}

func (h *Hub) closeAll(reason string) {
	for id, conn := range h.connections {
		conn.writer.stopGraceful(reason)
		delete(h.connections, id)
	}
	metrics.HubConnectedClients.Set(0)
	metrics.HubSubscriptions.Set(0)
}

// send queues an envelope for one connection, evicting it if the buffer is
// full.
func (h *Hub) send(conn *Connection, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal message", "type", env.Type, "error", err)
		return
	}
	select {
	case conn.writer.sendChannel <- data:
		metrics.HubMessagesSent.WithLabelValues(env.Type).Inc()
	default:
		logging.WithConnection(conn.ID.String()).Warn("Disconnecting slow client")
		metrics.HubSlowClientsEvicted.Inc()
		h.handleDisconnect(conn)
	}
}

// particleData derives the wind vector components the 3D layer animates
// particles with.
type particlePayload struct {
	RegionID      string  `json:"region_id"`
	PollenCount   float64 `json:"pollen_count"`
	WindU         float64 `json:"wind_u"`
	WindV         float64 `json:"wind_v"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
}

func particleData(snap domain.Snapshot) particlePayload {
	rad := snap.Weather.WindDirection * math.Pi / 180
	return particlePayload{
		RegionID:      snap.RegionID,
		PollenCount:   snap.PollenCount,
		WindU:         snap.Weather.WindSpeed * math.Cos(rad),
		WindV:         snap.Weather.WindSpeed * math.Sin(rad),
		WindSpeed:     snap.Weather.WindSpeed,
		WindDirection: snap.Weather.WindDirection,
	}
}

func snapshotList(m map[string]domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(m))
	for _, id := range sortedKeys(m) {
		out = append(out, m[id])
	}
	return out
}

func predictionList(m map[string]domain.Prediction) []domain.Prediction {
	out := make([]domain.Prediction, 0, len(m))
	for _, id := range sortedKeys(m) {
		out = append(out, m[id])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
