package sink

import (
	"context"
	"fmt"

	"peerchat/domain/event"
)

// ConnectionSink buffers the events of one UI connection. The connection
// handler drains Events and writes them to the socket.
type ConnectionSink struct {
	Events chan event.ChatEvent
	done   <-chan struct{}
}

// NewConnectionSink creates a sink that stops accepting events once done is
// closed.
func NewConnectionSink(bufferSize int, done <-chan struct{}) *ConnectionSink {
	return &ConnectionSink{Events: make(chan event.ChatEvent, bufferSize), done: done}
}

// Consume is called by the fanout. When the buffer is full it waits until
// ctx expires, so a stuck client only slows its own deliveries.
func (s *ConnectionSink) Consume(ctx context.Context, e event.ChatEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-s.done:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}
