package sink

import (
	"context"
	"log/slog"

	"peerchat/domain/event"
)

// LogSink journals room activity to the process logger. Message bodies are
// never logged, only their size.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (l LogSink) Consume(_ context.Context, e event.ChatEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		l.log.Debug("Message received", "id", evt.ID, "from", evt.From.Short(), "nickname", evt.Nickname, "size", len(evt.Text))
	case event.Presence:
		l.log.Debug("Presence", "from", evt.From.Short(), "nickname", evt.Nickname)
	case event.Joined:
		l.log.Info("Joined topic", "neighbors", len(evt.Neighbors))
	case event.NeighborUp:
		l.log.Info("Neighbor up", "node", evt.NodeID.Short())
	case event.NeighborDown:
		l.log.Info("Neighbor down", "node", evt.NodeID.Short())
	case event.Lagged:
		l.log.Warn("Events dropped, consumer lagged behind")
	case event.Errored:
		l.log.Error("Room stream failed", "message", evt.Message)
	case event.Disconnected:
		l.log.Info("Room stream ended")
	default:
		l.log.Debug("Unhandled event", "type", e.Type())
	}
	return nil
}
