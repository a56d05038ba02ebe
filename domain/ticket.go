// Package domain contains core concepts of the chat system.
// This file defines the ChatTicket, the portable descriptor of a room.
package domain

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"strings"

	"peerchat/codec"
	"peerchat/errors"
)

const (
	// TicketKind prefixes every serialized chat ticket so it can be told
	// apart from other ticket kinds shared over the same channels.
	TicketKind    = "chat"
	ticketVersion = 1
)

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ChatTicket identifies a room and the peers to contact when joining it.
// A ticket is immutable: WithBootstrap returns a modified copy.
type ChatTicket struct {
	topicID   TopicID
	name      string
	bootstrap PeerSet
}

// NewTicket returns a ticket for topic with an empty bootstrap set. Invalid
// UTF-8 sequences in name are replaced with U+FFFD so the ticket always
// encodes to a payload DeserializeTicket accepts.
func NewTicket(topicID TopicID, name string) ChatTicket {
	return ChatTicket{topicID: topicID, name: strings.ToValidUTF8(name, "\uFFFD"), bootstrap: PeerSet{}}
}

// NewNamedTicket returns a ticket for a fresh random topic.
func NewNamedTicket(name string) ChatTicket {
	return NewTicket(NewRandomTopicID(), name)
}

func (t ChatTicket) TopicID() TopicID { return t.topicID }

func (t ChatTicket) Name() string { return t.name }

// Bootstrap returns a copy of the bootstrap set.
func (t ChatTicket) Bootstrap() PeerSet { return t.bootstrap.Clone() }

// WithBootstrap returns a copy of t whose bootstrap set also holds peers.
func (t ChatTicket) WithBootstrap(peers ...PeerID) ChatTicket {
	next := t.bootstrap.Clone()
	next.Add(peers...)
	return ChatTicket{topicID: t.topicID, name: t.name, bootstrap: next}
}

// Equal compares topic, name and bootstrap set.
func (t ChatTicket) Equal(other ChatTicket) bool {
	if t.topicID != other.topicID || t.name != other.name || len(t.bootstrap) != len(other.bootstrap) {
		return false
	}
	for id := range t.bootstrap {
		if !other.bootstrap.Contains(id) {
			return false
		}
	}
	return true
}

func (t ChatTicket) String() string {
	return fmt.Sprintf("ChatTicket{topic: %s, name: %q, bootstrap: %d peers}", t.topicID, t.name, len(t.bootstrap))
}

// ticketPayload is the versioned CBOR layout of a ticket. The bootstrap
// list is sorted ascending and holds no duplicates.
type ticketPayload struct {
	_         struct{} `cbor:",toarray"`
	Version   uint
	Topic     []byte
	Name      string
	Bootstrap [][]byte
}

// Serialize encodes the ticket as "chat" followed by the lowercase,
// unpadded base32 form of its CBOR payload.
func (t ChatTicket) Serialize() string {
	payload := ticketPayload{
		Version:   ticketVersion,
		Topic:     t.topicID[:],
		Name:      t.name,
		Bootstrap: make([][]byte, 0, len(t.bootstrap)),
	}
	for _, id := range t.bootstrap.Sorted() {
		payload.Bootstrap = append(payload.Bootstrap, bytes.Clone(id[:]))
	}
	raw, err := codec.Marshal(payload)
	if err != nil {
		// Only fixed-shape values are encoded here.
		panic(fmt.Sprintf("ticket encoding failed: %v", err))
	}
	return encodeEnvelope(TicketKind, raw)
}

// DeserializeTicket parses a string produced by Serialize. Every failure
// wraps errors.ErrInvalidTicket.
func DeserializeTicket(input string) (ChatTicket, error) {
	raw, err := decodeEnvelope(TicketKind, strings.TrimSpace(input))
	if err != nil {
		return ChatTicket{}, err
	}
	var payload ticketPayload
	if err := codec.Unmarshal(raw, &payload); err != nil {
		return ChatTicket{}, fmt.Errorf("%w: malformed payload: %v", errors.ErrInvalidTicket, err)
	}
	if payload.Version != ticketVersion {
		return ChatTicket{}, fmt.Errorf("%w: unsupported version %d", errors.ErrInvalidTicket, payload.Version)
	}
	if len(payload.Topic) != IDLength {
		return ChatTicket{}, fmt.Errorf("%w: topic id is %d bytes", errors.ErrInvalidTicket, len(payload.Topic))
	}

	ticket := ChatTicket{name: payload.Name, bootstrap: make(PeerSet, len(payload.Bootstrap))}
	copy(ticket.topicID[:], payload.Topic)

	var previous *PeerID
	for i, rawID := range payload.Bootstrap {
		if len(rawID) != IDLength {
			return ChatTicket{}, fmt.Errorf("%w: bootstrap entry %d is %d bytes", errors.ErrInvalidTicket, i, len(rawID))
		}
		var id PeerID
		copy(id[:], rawID)
		if previous != nil && comparePeers(*previous, id) >= 0 {
			return ChatTicket{}, fmt.Errorf("%w: bootstrap set is not strictly ordered", errors.ErrInvalidTicket)
		}
		ticket.bootstrap.Add(id)
		previous = &id
	}
	return ticket, nil
}

func encodeEnvelope(kind string, payload []byte) string {
	return kind + strings.ToLower(ticketEncoding.EncodeToString(payload))
}

func decodeEnvelope(kind, input string) ([]byte, error) {
	body, ok := strings.CutPrefix(input, kind)
	if !ok {
		return nil, fmt.Errorf("%w: expected %q ticket", errors.ErrInvalidTicket, kind)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty payload", errors.ErrInvalidTicket)
	}
	raw, err := ticketEncoding.DecodeString(strings.ToUpper(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidTicket, err)
	}
	return raw, nil
}
