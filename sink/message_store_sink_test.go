package sink

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/errors"
	"peerchat/mocks"
	"peerchat/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_MessageStoreSink_Stores_Received_Messages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	sink := NewMessageStoreSink(repository, slog.Default())

	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := event.MessageReceived{
		ID:            uuid.New(),
		Topic:         domain.NewRandomTopicID(),
		Nickname:      "bob",
		Text:          "hello",
		SentTimestamp: sentAt.UnixMicro(),
	}

	// Then the message is stored with its room and send time
	repository.EXPECT().StoreMessage(repositories.StoredMessage{
		ID:       msg.ID,
		Topic:    msg.Topic,
		Nickname: "bob",
		Text:     "hello",
		SentAt:   sentAt,
	}).Return(nil)

	req.NoError(sink.Consume(context.Background(), msg))
}

func Test_MessageStoreSink_Ignores_Other_Events(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	// No call expected on the repository
	sink := NewMessageStoreSink(mocks.NewMockIMessageRepository(ctrl), slog.Default())

	req.NoError(sink.Consume(context.Background(), event.Presence{Nickname: "bob"}))
	req.NoError(sink.Consume(context.Background(), event.Disconnected{}))
}

func Test_MessageStoreSink_Reports_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	sink := NewMessageStoreSink(repository, slog.Default())
	repository.EXPECT().StoreMessage(gomock.Any()).
		Return(fmt.Errorf("%w: disk full", errors.ErrStoreUnavailable))

	err := sink.Consume(context.Background(), event.MessageReceived{Text: "lost"})

	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
