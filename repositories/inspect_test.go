package repositories

import (
	"log/slog"
	"testing"
	"time"

	"peerchat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Describe_Stored_Records(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	repository := NewRoomHistoryRepository(db, slog.Default(), "")
	repository.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	req.NoError(repository.SetNickname("alice"))
	_, err := repository.SecretKey()
	req.NoError(err)
	ticket := domain.NewNamedTicket("general")
	req.NoError(repository.UpsertVisitedRoom(ticket))
	messages := NewMessageRepository(db, setupIndex(t), slog.Default())
	req.NoError(messages.StoreMessage(StoredMessage{
		ID:       uuid.New(),
		Topic:    ticket.TopicID(),
		Nickname: "bob",
		Text:     "top secret",
		SentAt:   time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}))

	views := map[string]RecordView{}
	req.NoError(db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			view := Describe(string(it.Item().Key()), val)
			views[view.Type] = view
		}
		return nil
	}))

	req.Equal("alice", views["NICKNAME"].Detail)
	req.Equal("plain", views["SECRET_KEY"].Detail)
	req.Equal("general (0 bootstrap peers)", views["VISITED"].Detail)
	req.Equal("2026-03-01 12:00:00", views["VISITED"].Timestamp)
	req.Equal("from bob, 10 bytes", views["MESSAGE"].Detail)
	req.Equal("2026-03-01 12:05:00", views["MESSAGE"].Timestamp)
	req.Equal("RAW", Describe("unknown", []byte{1, 2}).Type)
}
