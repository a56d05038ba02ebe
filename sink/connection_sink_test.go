package sink

import (
	"context"
	"testing"
	"time"

	"peerchat/domain/event"

	"github.com/stretchr/testify/require"
)

func Test_ConnectionSink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1, make(chan struct{}))

	req.NoError(sink.Consume(context.Background(), event.Lagged{}))
	req.Equal(event.Lagged{}, <-sink.Events)
}

func Test_ConnectionSink_Full_Buffer_Times_Out(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1, make(chan struct{}))
	req.NoError(sink.Consume(context.Background(), event.Lagged{}))

	// Given the buffer is full, the delivery waits for its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Consume(ctx, event.Disconnected{})

	req.ErrorIs(err, context.DeadlineExceeded)
}

func Test_ConnectionSink_Closed_Connection(t *testing.T) {
	req := require.New(t)
	done := make(chan struct{})
	sink := NewConnectionSink(0, done)
	close(done)

	err := sink.Consume(context.Background(), event.Lagged{})

	req.ErrorContains(err, "connection closed")
}
