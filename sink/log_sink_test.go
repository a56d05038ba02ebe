package sink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"peerchat/domain"
	"peerchat/domain/event"

	"github.com/stretchr/testify/require"
)

func Test_LogSink_Never_Logs_Message_Text(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(log)

	// When a message and a membership change are consumed
	req.NoError(sink.Consume(context.Background(), event.MessageReceived{Nickname: "alice", Text: "secret plans"}))
	req.NoError(sink.Consume(context.Background(), event.NeighborUp{NodeID: domain.PeerID{1}}))

	// Then both are journaled without the message body
	out := buf.String()
	req.Contains(out, "Message received")
	req.Contains(out, "size=12")
	req.Contains(out, "Neighbor up")
	req.NotContains(out, "secret plans")
}
