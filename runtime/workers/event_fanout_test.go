package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"peerchat/domain/event"
	"peerchat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_Fanout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	ui := mocks.NewMockEventSink(ctrl)
	journal := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, time.Second)
	fanout.Add("ui", ui)
	fanout.Add("journal", journal)

	evt := event.Lagged{}

	// Given both sinks consume the event
	ui.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	journal.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When an event is fanned out
	err := fanout.Consume(context.Background(), evt)

	// Then success happens
	req.NoError(err)
	req.Equal(2, fanout.Len())
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)

	slow := mocks.NewMockEventSink(ctrl)
	fast := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, 20*time.Millisecond)
	fanout.Add("a-slow", slow)
	fanout.Add("b-fast", fast)

	// Given a sink blocking until its deadline
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.ChatEvent) error {
			<-ctx.Done()     // Waiting for timeout to trigger cancellation
			return ctx.Err() // Sending back "context deadline exceeded"
		}).
		Times(1)
	// And another sink behind it
	fast.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// When an event is fanned out
	err := fanout.Consume(context.Background(), event.Disconnected{})

	// Then the slow sink error is reported and the fast sink still got the event
	req.ErrorIs(err, context.DeadlineExceeded)
	req.Contains(err.Error(), "a-slow")
}

func TestEventFanout_Remove(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(slog.Default(), 0)

	fanout.Add("ui", sink)
	fanout.Remove("ui")

	// Then the removed sink is never called
	req.NoError(fanout.Consume(context.Background(), event.Lagged{}))
	req.Zero(fanout.Len())
}
