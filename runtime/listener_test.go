package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func runListener(listener *Listener) <-chan error {
	done := make(chan error, 1)
	go func() { done <- listener.Run(context.Background()) }()
	return done
}

func Test_Listener_Forwards_Then_Terminates_On_Error(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockNeighborObserver(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	stream := make(chan event.Item, 3)

	up := event.NeighborUp{NodeID: randomPeer(t)}

	// Given an event followed by a stream error
	gomock.InOrder(
		observer.EXPECT().Observe(up),
		sink.EXPECT().Consume(gomock.Any(), up).Return(nil),
		observer.EXPECT().MarkClosed("connection reset"),
		sink.EXPECT().Consume(gomock.Any(), event.Errored{Message: "connection reset"}).Return(nil),
	)
	stream <- event.Item{Event: up}
	stream <- event.Item{Err: fmt.Errorf("connection reset")}
	// Never reached
	stream <- event.Item{Event: event.Lagged{}}

	// When the listener runs
	done := runListener(NewListener(log, domain.TopicID{}, stream, observer, sink))

	// Then it stops on its own after the error
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("listener did not stop")
	}
}

func Test_Listener_Terminates_When_Stream_Ends(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockNeighborObserver(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	stream := make(chan event.Item)

	observer.EXPECT().MarkClosed("event stream ended")
	sink.EXPECT().Consume(gomock.Any(), event.Disconnected{}).Return(nil)

	// Given the stream is closed by the network
	close(stream)

	done := runListener(NewListener(log, domain.TopicID{}, stream, observer, sink))

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("listener did not stop")
	}
}

func Test_Listener_Keeps_Running_When_Sink_Fails(t *testing.T) {
	topic := domain.NewRandomTopicID()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockNeighborObserver(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	stream := make(chan event.Item, 2)

	first := event.MessageReceived{Text: "one"}
	second := event.MessageReceived{Text: "two"}
	stamped := func(msg event.MessageReceived) event.MessageReceived {
		msg.Topic = topic
		return msg
	}

	// Given the UI rejects the first event
	observer.EXPECT().Observe(gomock.Any()).Times(2)
	gomock.InOrder(
		sink.EXPECT().Consume(gomock.Any(), stamped(first)).Return(fmt.Errorf("window closed")),
		sink.EXPECT().Consume(gomock.Any(), stamped(second)).Return(nil),
		sink.EXPECT().Consume(gomock.Any(), event.Disconnected{}).Return(nil),
	)
	observer.EXPECT().MarkClosed(gomock.Any())
	stream <- event.Item{Event: first}
	stream <- event.Item{Event: second}
	close(stream)

	// Then the following events are still delivered, tagged with the room
	done := runListener(NewListener(log, topic, stream, observer, sink))
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("listener did not stop")
	}
}

func Test_ListenerHandle_Stop_Cancels_Silently(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockNeighborObserver(ctrl)
	sink := mocks.NewMockEventSink(ctrl)
	var live atomic.Int32

	// Given a listener on a stream that never ends
	handle := startListener(log, NewListener(log, domain.TopicID{}, make(chan event.Item), observer, sink), 10*time.Millisecond, &live)
	req.Equal(int32(1), live.Load())

	// When it is stopped
	handle.Stop()

	// Then no terminal event is sent and nothing is left running
	req.Equal(int32(0), live.Load())
}
