package sink

import (
	"context"
	"log/slog"
	"time"

	"peerchat/domain/event"
	"peerchat/repositories"
)

// MessageStoreSink records every received message in the room history.
// Other events are ignored.
type MessageStoreSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewMessageStoreSink(repository repositories.IMessageRepository, log *slog.Logger) MessageStoreSink {
	return MessageStoreSink{repository: repository, log: log}
}

func (s MessageStoreSink) Consume(_ context.Context, e event.ChatEvent) error {
	msg, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	s.log.Debug("Storing message", "topic", msg.Topic.String(), "id", msg.ID)
	return s.repository.StoreMessage(repositories.StoredMessage{
		ID:       msg.ID,
		Topic:    msg.Topic,
		From:     msg.From,
		Nickname: msg.Nickname,
		Text:     msg.Text,
		SentAt:   time.UnixMicro(msg.SentTimestamp).UTC(),
	})
}
