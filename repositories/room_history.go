//go:generate go run go.uber.org/mock/mockgen -source=room_history.go -destination=../mocks/mock_room_history_repository.go -package=mocks
package repositories

import (
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"peerchat/auth"
	"peerchat/codec"
	"peerchat/domain"
	"peerchat/errors"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyNickname      = "nickname"
	keySecretKey     = "secret_key"
	prefixVisited    = "visited:"
	visitedKeyFormat = prefixVisited + "%s"
)

type IRoomHistoryRepository interface {
	Nickname() (string, bool, error)
	SetNickname(nickname string) error
	SecretKey() (ed25519.PrivateKey, error)
	VisitedRooms() ([]VisitedRoom, error)
	UpsertVisitedRoom(ticket domain.ChatTicket) error
	DeleteVisitedRoom(topic string) error
}

// VisitedRoom is a room the local user joined at some point.
type VisitedRoom struct {
	Ticket      domain.ChatTicket
	LastVisited time.Time
}

// RoomHistoryRepository persists the nickname, the node secret key and the
// visited rooms in BadgerDB. Each visited room lives under its own
// "visited:{topic_hex}" key so an upsert rewrites a single entry.
//
// No transaction spans several keys: a crash between two writes can leave
// the nickname updated and the room entry stale.
type RoomHistoryRepository struct {
	db         *badger.DB
	log        *slog.Logger
	passphrase string
	now        func() time.Time

	keyMu sync.Mutex
	key   ed25519.PrivateKey
}

// NewRoomHistoryRepository returns a repository over db. When passphrase is
// not empty the secret key is sealed at rest with it.
func NewRoomHistoryRepository(db *badger.DB, log *slog.Logger, passphrase string) *RoomHistoryRepository {
	return &RoomHistoryRepository{db: db, log: log, passphrase: passphrase, now: time.Now}
}

type nicknameRecord struct {
	Nickname string `cbor:"1,keyasint"`
}

type secretKeyRecord struct {
	Seed   []byte `cbor:"1,keyasint,omitempty"`
	Sealed string `cbor:"2,keyasint,omitempty"`
}

type visitedRecord struct {
	LastVisited int64  `cbor:"1,keyasint"`
	Ticket      string `cbor:"2,keyasint"`
}

func (r *RoomHistoryRepository) Nickname() (string, bool, error) {
	var record nicknameRecord
	found, err := r.get([]byte(keyNickname), &record)
	if err != nil || !found {
		return "", false, err
	}
	return record.Nickname, true, nil
}

func (r *RoomHistoryRepository) SetNickname(nickname string) error {
	return r.set([]byte(keyNickname), nicknameRecord{Nickname: nickname})
}

// SecretKey returns the node key, generating and storing it on first use.
// Concurrent first callers are serialized so exactly one key is generated,
// and the existence check runs inside the write transaction.
func (r *RoomHistoryRepository) SecretKey() (ed25519.PrivateKey, error) {
	r.keyMu.Lock()
	defer r.keyMu.Unlock()
	if r.key != nil {
		return r.key, nil
	}

	var key ed25519.PrivateKey
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySecretKey))
		switch {
		case err == nil:
			var record secretKeyRecord
			if err := item.Value(func(v []byte) error { return codec.Unmarshal(v, &record) }); err != nil {
				r.log.Warn("Stored secret key unreadable, generating a new one", "error", err)
			} else {
				key, err = r.openKey(record)
				if err != nil {
					return err
				}
				if key != nil {
					return nil
				}
				r.log.Warn("Stored secret key has an invalid seed, generating a new one")
			}
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		seed := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return err
		}
		record, err := r.sealKey(seed)
		if err != nil {
			return err
		}
		raw, err := codec.Marshal(record)
		if err != nil {
			return err
		}
		key = ed25519.NewKeyFromSeed(seed)
		r.log.Info("Generated node secret key", "peer", domain.PeerIDFromKey(key).Short())
		return txn.Set([]byte(keySecretKey), raw)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrSealedKey) || stderrors.Is(err, auth.ErrWrongPassphrase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	r.key = key
	return key, nil
}

func (r *RoomHistoryRepository) sealKey(seed []byte) (secretKeyRecord, error) {
	if r.passphrase == "" {
		return secretKeyRecord{Seed: seed}, nil
	}
	sealed, err := auth.SealKey(r.passphrase, seed)
	if err != nil {
		return secretKeyRecord{}, err
	}
	return secretKeyRecord{Sealed: sealed}, nil
}

// openKey returns a nil key when the record holds no usable seed.
func (r *RoomHistoryRepository) openKey(record secretKeyRecord) (ed25519.PrivateKey, error) {
	seed := record.Seed
	if record.Sealed != "" {
		if r.passphrase == "" {
			return nil, errors.ErrSealedKey
		}
		opened, err := auth.OpenKey(r.passphrase, record.Sealed)
		if err != nil {
			return nil, err
		}
		seed = opened
	} else if r.passphrase != "" {
		r.log.Warn("Secret key is stored unsealed although a passphrase is configured")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, nil
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// VisitedRooms lists the visited rooms from the oldest to the most recent
// visit. Entries whose ticket no longer parses are skipped.
func (r *RoomHistoryRepository) VisitedRooms() ([]VisitedRoom, error) {
	var rooms []VisitedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixVisited)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var record visitedRecord
			if err := item.Value(func(v []byte) error { return codec.Unmarshal(v, &record) }); err != nil {
				r.log.Warn("Skipping unreadable visited room", "key", string(item.Key()), "error", err)
				continue
			}
			ticket, err := domain.DeserializeTicket(record.Ticket)
			if err != nil {
				r.log.Warn("Skipping visited room with invalid ticket", "key", string(item.Key()), "error", err)
				continue
			}
			rooms = append(rooms, VisitedRoom{
				Ticket:      ticket,
				LastVisited: time.Unix(0, record.LastVisited).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastVisited.Before(rooms[j].LastVisited)
	})
	return rooms, nil
}

// UpsertVisitedRoom stamps the room with the current time, replacing the
// stored ticket when the topic is already known.
func (r *RoomHistoryRepository) UpsertVisitedRoom(ticket domain.ChatTicket) error {
	key := fmt.Sprintf(visitedKeyFormat, ticket.TopicID())
	return r.set([]byte(key), visitedRecord{
		LastVisited: r.now().UnixNano(),
		Ticket:      ticket.Serialize(),
	})
}

// DeleteVisitedRoom removes a room from the history. The topic is accepted
// in any hex case and surrounding blanks are ignored. Unknown or malformed
// topics are a no-op.
func (r *RoomHistoryRepository) DeleteVisitedRoom(topic string) error {
	id, err := domain.ParseTopicID(topic)
	if err != nil {
		r.log.Info("Visited room not found when deleting", "topic", topic, "error", err)
		return nil
	}
	key := []byte(fmt.Sprintf(visitedKeyFormat, id))
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		r.log.Info("Visited room not found when deleting", "topic", topic)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RoomHistoryRepository) get(key []byte, v any) (bool, error) {
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(raw []byte) error { return codec.Unmarshal(raw, v) })
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return found, nil
}

func (r *RoomHistoryRepository) set(key []byte, v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return nil
}
