package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"peerchat/contract"
	"peerchat/domain/event"
)

const defaultSinkTimeout = 2 * time.Second

// EventFanout broadcasts chat notifications to every registered sink.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. Each sink gets sinkTimeout to consume an event;
// a slow sink delays the others but never blocks them forever.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log         *slog.Logger
	sinkTimeout time.Duration

	mu    sync.RWMutex
	sinks map[string]contract.EventSink
}

func NewEventFanout(log *slog.Logger, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{log: log, sinkTimeout: sinkTimeout, sinks: make(map[string]contract.EventSink)}
}

// Add registers sink under name, replacing any sink with the same name.
func (f *EventFanout) Add(name string, sink contract.EventSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks[name] = sink
}

func (f *EventFanout) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sinks, name)
}

func (f *EventFanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Consume delivers evt to every sink, in name order. Failures are joined in
// the returned error; they never stop delivery to the remaining sinks.
func (f *EventFanout) Consume(ctx context.Context, evt event.ChatEvent) error {
	f.mu.RLock()
	names := make([]string, 0, len(f.sinks))
	for name := range f.sinks {
		names = append(names, name)
	}
	sinks := make([]contract.EventSink, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		sinks = append(sinks, f.sinks[name])
	}
	f.mu.RUnlock()

	var errs []error
	for i, sink := range sinks {
		if err := f.deliver(ctx, sink, evt); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", names[i], err))
		}
	}
	return stderrors.Join(errs...)
}

func (f *EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.ChatEvent) error {
	ctx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
	defer cancel()
	return sink.Consume(ctx, evt)
}
