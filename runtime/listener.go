package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"peerchat/contract"
	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/runtime/workers"
)

// Listener drains a channel's inbound stream. Each event updates the
// channel's neighbors through the observer and is then forwarded to the UI
// sink, messages stamped with the channel's topic. An error item or the end of the stream sends a terminal
// notification and stops the listener.
//
// The observer is a back-reference: the listener never keeps the channel
// alive on its own and is stopped whenever the channel is dropped.
type Listener struct {
	log      *slog.Logger
	topic    domain.TopicID
	stream   event.Stream
	observer contract.NeighborObserver
	sink     contract.EventSink
}

func NewListener(log *slog.Logger, topic domain.TopicID, stream event.Stream, observer contract.NeighborObserver, sink contract.EventSink) *Listener {
	return &Listener{log: log, topic: topic, stream: stream, observer: observer, sink: sink}
}

func (l *Listener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("Stopping listener")
			return nil
		case item, ok := <-l.stream:
			if !ok {
				l.log.Info("Chat event stream ended")
				l.terminate(ctx, event.Disconnected{}, "event stream ended")
				return nil
			}
			if item.Err != nil {
				l.log.Error("Error receiving chat event", "error", item.Err)
				l.terminate(ctx, event.Errored{Message: item.Err.Error()}, item.Err.Error())
				return nil
			}
			if item.Event == nil {
				continue
			}
			l.observer.Observe(item.Event)
			if msg, ok := item.Event.(event.MessageReceived); ok {
				msg.Topic = l.topic
				item.Event = msg
			}
			if err := l.sink.Consume(ctx, item.Event); err != nil {
				l.log.Error("Failed to emit event to frontend", "type", item.Event.Type(), "error", err)
			}
		}
	}
}

func (l *Listener) terminate(ctx context.Context, evt event.ChatEvent, reason string) {
	l.observer.MarkClosed(reason)
	if err := l.sink.Consume(ctx, evt); err != nil {
		l.log.Error("Failed to emit terminal event to frontend", "type", evt.Type(), "error", err)
	}
}

// listenerHandle is the cancellation handle stored next to the channel.
type listenerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startListener runs worker under its own supervisor. live counts running
// listeners for the session.
func startListener(log *slog.Logger, worker contract.Worker, restartInterval time.Duration, live *atomic.Int32) *listenerHandle {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &listenerHandle{cancel: cancel, done: make(chan struct{})}
	supervisor := workers.NewSupervisor(log, restartInterval)

	live.Add(1)
	go func() {
		defer close(handle.done)
		defer live.Add(-1)
		supervisor.Add(worker).Run(ctx)
	}()
	return handle
}

// Stop cancels the listener and waits until it returned.
func (h *listenerHandle) Stop() {
	h.cancel()
	<-h.done
}
