// Package hub implements the WebSocket broadcast hub using the actor pattern.
//
// A single goroutine owns the connection registry and subscription state;
// all mutation flows through a command channel (no mutexes). Per-connection
// write goroutines isolate slow clients: a full send buffer is treated as an
// implicit disconnect, never as an error surfaced to other connections.
package hub
