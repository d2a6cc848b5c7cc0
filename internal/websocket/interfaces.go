package websocket

import (
	"context"
	"time"

	"expensecli/pkg/contracts/events"
)

// Connection is the subset of a websocket connection used by Client, so the
// pumps can run against an in-memory fake
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// Publisher delivers events to connected dashboard clients
type Publisher interface {
	Publish(ctx context.Context, msg events.WebSocketMessage)
}
