package hub

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound message types.
const (
	TypeConnected          = "connected"
	TypeSubscribed         = "subscribed"
	TypeUnsubscribed       = "unsubscribed"
	TypePong               = "pong"
	TypeError              = "error"
	TypeInitialPollenData  = "initialPollenData"
	TypeInitialPredictions = "initialPredictions"
	TypePollenUpdate       = "pollenUpdate"
	TypePredictionUpdate   = "predictionUpdate"
	TypeParticleUpdate     = "particleUpdate"
)

// Inbound message types.
const (
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"
	typePing        = "ping"
)

// Envelope is the outbound wire frame: every push carries a type, a payload,
// and an ISO-8601 timestamp.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newEnvelope(msgType string, data any, now time.Time) Envelope {
	return Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

func newErrorEnvelope(message string, now time.Time) Envelope {
	return Envelope{
		Type:      TypeError,
		Message:   message,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// clientCommand is the closed set of inbound commands. Anything that does
// not parse into one of its variants is rejected at the boundary.
type clientCommand interface{ isClientCommand() }

type subscribeCommand struct{ RegionID string }

func (subscribeCommand) isClientCommand() {}

type unsubscribeCommand struct{ RegionID string }

func (unsubscribeCommand) isClientCommand() {}

type pingCommand struct{}

func (pingCommand) isClientCommand() {}

// parseClientCommand decodes one inbound frame. The returned error message
// is safe to echo back to the client.
func parseClientCommand(payload []byte) (clientCommand, error) {
	var frame struct {
		Type     string `json:"type"`
		RegionID string `json:"regionId"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("Invalid message")
	}

	switch frame.Type {
	case typeSubscribe:
		return subscribeCommand{RegionID: frame.RegionID}, nil
	case typeUnsubscribe:
		return unsubscribeCommand{RegionID: frame.RegionID}, nil
	case typePing:
		return pingCommand{}, nil
	default:
		return nil, fmt.Errorf("Unknown message type: %s", frame.Type)
	}
}
