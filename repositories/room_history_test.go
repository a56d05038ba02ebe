package repositories

import (
	"crypto/ed25519"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"peerchat/auth"
	"peerchat/domain"
	"peerchat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// setupTestDB initializes a temporary in-memory Badger instance.
func setupTestDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixedClock returns successive timestamps one minute apart.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

func Test_Nickname_Absent_Then_Set(t *testing.T) {
	req := require.New(t)
	repository := NewRoomHistoryRepository(setupTestDB(t), slog.Default(), "")

	// Given nothing is stored
	_, found, err := repository.Nickname()
	req.NoError(err)
	req.False(found)

	// When a nickname is stored
	req.NoError(repository.SetNickname("Alice"))

	// Then it is read back
	nickname, found, err := repository.Nickname()
	req.NoError(err)
	req.True(found)
	req.Equal("Alice", nickname)
}

func Test_Upsert_Same_Topic_Updates_In_Place(t *testing.T) {
	req := require.New(t)
	repository := NewRoomHistoryRepository(setupTestDB(t), slog.Default(), "")
	repository.now = fixedClock(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))

	ticket := domain.NewNamedTicket("general")
	_, key, err := ed25519.GenerateKey(nil)
	req.NoError(err)
	updated := ticket.WithBootstrap(domain.PeerIDFromKey(key))

	// When the same topic is upserted twice
	req.NoError(repository.UpsertVisitedRoom(ticket))
	rooms, err := repository.VisitedRooms()
	req.NoError(err)
	req.Len(rooms, 1)
	firstVisit := rooms[0].LastVisited

	req.NoError(repository.UpsertVisitedRoom(updated))

	// Then a single entry holds the latest ticket and timestamp
	rooms, err = repository.VisitedRooms()
	req.NoError(err)
	req.Len(rooms, 1)
	req.True(updated.Equal(rooms[0].Ticket))
	req.True(rooms[0].LastVisited.After(firstVisit))
}

func Test_VisitedRooms_Sorted_By_Last_Visit(t *testing.T) {
	req := require.New(t)
	repository := NewRoomHistoryRepository(setupTestDB(t), slog.Default(), "")
	repository.now = fixedClock(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))

	first := domain.NewNamedTicket("first")
	second := domain.NewNamedTicket("second")
	third := domain.NewNamedTicket("third")

	// Given three rooms visited in order, then the first one again
	req.NoError(repository.UpsertVisitedRoom(first))
	req.NoError(repository.UpsertVisitedRoom(second))
	req.NoError(repository.UpsertVisitedRoom(third))
	req.NoError(repository.UpsertVisitedRoom(first))

	// When listing
	rooms, err := repository.VisitedRooms()
	req.NoError(err)

	// Then rooms are ordered from the oldest visit
	req.Len(rooms, 3)
	req.Equal("second", rooms[0].Ticket.Name())
	req.Equal("third", rooms[1].Ticket.Name())
	req.Equal("first", rooms[2].Ticket.Name())
}

func Test_Delete_Visited_Room(t *testing.T) {
	req := require.New(t)
	repository := NewRoomHistoryRepository(setupTestDB(t), slog.Default(), "")
	ticket := domain.NewNamedTicket("general")
	req.NoError(repository.UpsertVisitedRoom(ticket))

	// When deleting an unknown topic
	req.NoError(repository.DeleteVisitedRoom("unknown"))
	rooms, err := repository.VisitedRooms()
	req.NoError(err)
	req.Len(rooms, 1)

	// When deleting the stored topic
	req.NoError(repository.DeleteVisitedRoom(ticket.TopicID().String()))

	// Then the history is empty
	rooms, err = repository.VisitedRooms()
	req.NoError(err)
	req.Empty(rooms)
}

func Test_Delete_Visited_Room_Normalizes_Topic(t *testing.T) {
	req := require.New(t)
	repository := NewRoomHistoryRepository(setupTestDB(t), slog.Default(), "")
	upper := domain.NewNamedTicket("upper")
	padded := domain.NewNamedTicket("padded")
	req.NoError(repository.UpsertVisitedRoom(upper))
	req.NoError(repository.UpsertVisitedRoom(padded))

	// When the ids are given in uppercase or surrounded by blanks
	req.NoError(repository.DeleteVisitedRoom(strings.ToUpper(upper.TopicID().String())))
	req.NoError(repository.DeleteVisitedRoom("  " + padded.TopicID().String() + "\n"))

	// Then both entries are gone
	rooms, err := repository.VisitedRooms()
	req.NoError(err)
	req.Empty(rooms)
}

func Test_SecretKey_Generated_Once(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	repository := NewRoomHistoryRepository(db, slog.Default(), "")

	// When many callers ask for the key at the same time
	keys := make([]ed25519.PrivateKey, 8)
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = repository.SecretKey()
		}(i)
	}
	wg.Wait()

	// Then they all get the same key
	for i, key := range keys {
		req.NoError(errs[i])
		req.True(keys[0].Equal(key))
	}

	// And a fresh repository over the same database reads it back
	reopened := NewRoomHistoryRepository(db, slog.Default(), "")
	key, err := reopened.SecretKey()
	req.NoError(err)
	req.True(keys[0].Equal(key))
}

func Test_SecretKey_Sealed_With_Passphrase(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	repository := NewRoomHistoryRepository(db, slog.Default(), "correct horse")

	key, err := repository.SecretKey()
	req.NoError(err)

	// Then the same passphrase opens it
	same, err := NewRoomHistoryRepository(db, slog.Default(), "correct horse").SecretKey()
	req.NoError(err)
	req.True(key.Equal(same))

	// And a missing passphrase is reported
	_, err = NewRoomHistoryRepository(db, slog.Default(), "").SecretKey()
	req.ErrorIs(err, errors.ErrSealedKey)

	// And a wrong passphrase never overwrites the stored key
	_, err = NewRoomHistoryRepository(db, slog.Default(), "battery staple").SecretKey()
	req.ErrorIs(err, auth.ErrWrongPassphrase)
	again, err := NewRoomHistoryRepository(db, slog.Default(), "correct horse").SecretKey()
	req.NoError(err)
	req.True(key.Equal(again))
}

func Test_Closed_Store_Is_Unavailable(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	repository := NewRoomHistoryRepository(db, slog.Default(), "")
	req.NoError(db.Close())

	err = repository.SetNickname("Alice")

	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
