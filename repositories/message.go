//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"peerchat/codec"
	"peerchat/domain"
	"peerchat/errors"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	prefixMessage       = "msg:"
	messagePrefixFormat = prefixMessage + "%s:"
	messageKeyFormat    = messagePrefixFormat + "%019d:%s"

	DefaultMessagePage = 50
	MaxMessagePage     = 200

	fieldTopic = "topic"
	fieldText  = "text"
	fieldID    = "_id"
)

type IMessageRepository interface {
	StoreMessage(message StoredMessage) error
	GetMessages(topic domain.TopicID, limit, offset int) ([]StoredMessage, error)
	SearchMessages(ctx context.Context, topic domain.TopicID, query string, limit int) ([]StoredMessage, error)
	LastMessageAt(topic domain.TopicID) (time.Time, bool, error)
	DeleteMessages(topic domain.TopicID) (int, error)
}

// StoredMessage is a chat message kept in the local history of a room.
type StoredMessage struct {
	ID       uuid.UUID
	Topic    domain.TopicID
	From     domain.PeerID
	Nickname string
	Text     string
	SentAt   time.Time
}

type messageRecord struct {
	ID       []byte `cbor:"1,keyasint"`
	From     []byte `cbor:"2,keyasint"`
	Nickname string `cbor:"3,keyasint"`
	Text     string `cbor:"4,keyasint"`
	SentAt   int64  `cbor:"5,keyasint"`
}

// MessageRepository keeps the message history of every room in BadgerDB
// and indexes message text in bluge for search.
//
// The badger key "msg:{topic_hex}:{sent_at_padded}:{uuid}" orders a room's
// messages chronologically: the 19-digit zero padding makes lexicographic
// order match time order and the uuid keeps two messages sent in the same
// nanosecond apart. The same key is the bluge document id, so the index
// never holds anything badger cannot resolve.
type MessageRepository struct {
	db    *badger.DB
	index *bluge.Writer
	log   *slog.Logger
}

func NewMessageRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, index: index, log: log}
}

func messageKey(message StoredMessage) string {
	return fmt.Sprintf(messageKeyFormat, message.Topic, message.SentAt.UnixNano(), message.ID)
}

func messagePrefix(topic domain.TopicID) []byte {
	return []byte(fmt.Sprintf(messagePrefixFormat, topic))
}

// StoreMessage persists a message. Storing the same message twice rewrites
// the same entry. An indexing failure is logged: the message stays readable
// through GetMessages.
func (m *MessageRepository) StoreMessage(message StoredMessage) error {
	key := messageKey(message)
	raw, err := codec.Marshal(messageRecord{
		ID:       message.ID[:],
		From:     message.From[:],
		Nickname: message.Nickname,
		Text:     message.Text,
		SentAt:   message.SentAt.UnixNano(),
	})
	if err != nil {
		return err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}

	doc := bluge.NewDocument(key).
		AddField(bluge.NewKeywordField(fieldTopic, message.Topic.String())).
		AddField(bluge.NewTextField(fieldText, message.Text))
	if err := m.index.Update(doc.ID(), doc); err != nil {
		m.log.Warn("Failed to index message", "topic", message.Topic.String(), "id", message.ID, "error", err)
	}
	return nil
}

// GetMessages pages through a room's history from the newest message
// backwards: offset skips the most recent messages, limit caps the page.
// The page itself is returned oldest first, ready to be displayed.
func (m *MessageRepository) GetMessages(topic domain.TopicID, limit, offset int) ([]StoredMessage, error) {
	limit = clampPage(limit)
	offset = max(offset, 0)

	var messages []StoredMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(topic)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		skipped := 0
		for it.Seek(append(slices.Clone(prefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			message, err := m.decode(topic, it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// SearchMessages returns the messages of a room whose text matches query,
// most recent first.
func (m *MessageRepository) SearchMessages(ctx context.Context, topic domain.TopicID, query string, limit int) ([]StoredMessage, error) {
	reader, err := m.index.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	defer func() { _ = reader.Close() }()

	request := bluge.NewTopNSearch(clampPage(limit), bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(topic.String()).SetField(fieldTopic)).
		AddMust(bluge.NewMatchQuery(query).SetField(fieldText)))
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}

	var keys []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				keys = append(keys, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}

	// Keys embed the padded timestamp: descending key order is newest first.
	slices.Sort(keys)
	slices.Reverse(keys)

	var messages []StoredMessage
	err = m.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				m.log.Debug("Indexed message no longer stored", "key", key)
				continue
			}
			if err != nil {
				return err
			}
			message, err := m.decode(topic, item)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

// LastMessageAt reports when the most recent message of a room was sent.
func (m *MessageRepository) LastMessageAt(topic domain.TopicID) (time.Time, bool, error) {
	var (
		at    time.Time
		found bool
	)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(topic)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(slices.Clone(prefix), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		message, err := m.decode(topic, it.Item())
		if err != nil {
			return err
		}
		at, found = message.SentAt, true
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return at, found, nil
}

// DeleteMessages removes every message of a room from the store and the
// index, and returns how many were removed.
func (m *MessageRepository) DeleteMessages(topic domain.TopicID) (int, error) {
	var keys [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(topic)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := m.db.NewWriteBatch()
	batch := bluge.NewBatch()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
		}
		batch.Delete(bluge.Identifier(key))
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	if err := m.index.Batch(batch); err != nil {
		m.log.Warn("Failed to drop messages from the index", "topic", topic.String(), "error", err)
	}
	return len(keys), nil
}

func (m *MessageRepository) decode(topic domain.TopicID, item *badger.Item) (StoredMessage, error) {
	var record messageRecord
	if err := item.Value(func(v []byte) error { return codec.Unmarshal(v, &record) }); err != nil {
		return StoredMessage{}, fmt.Errorf("message %s: %w", item.Key(), err)
	}
	message := StoredMessage{
		Topic:    topic,
		Nickname: record.Nickname,
		Text:     record.Text,
		SentAt:   time.Unix(0, record.SentAt).UTC(),
	}
	copy(message.ID[:], record.ID)
	copy(message.From[:], record.From)
	return message, nil
}

func clampPage(limit int) int {
	if limit <= 0 {
		return DefaultMessagePage
	}
	return min(limit, MaxMessagePage)
}
