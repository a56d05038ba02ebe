// Package domain contains core concepts of the chat system.
// This file defines the fixed-size identifiers used by topics and peers.
package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// IDLength is the byte length of both topic and peer identifiers.
const IDLength = 32

// TopicID is the opaque protocol-level group identifier of a room.
type TopicID [IDLength]byte

// NewRandomTopicID draws a topic id from the system's secure random source.
func NewRandomTopicID() TopicID {
	var id TopicID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return id
}

func (id TopicID) String() string { return hex.EncodeToString(id[:]) }

func (id TopicID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TopicID) UnmarshalText(data []byte) error {
	return decodeHexID(id[:], string(data), "topic id")
}

// ParseTopicID parses the lowercase hex form produced by TopicID.String.
func ParseTopicID(s string) (TopicID, error) {
	var id TopicID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// PeerID is the public ed25519 key identifying a node.
type PeerID [IDLength]byte

// PeerIDFromKey derives the peer id of a secret key.
func PeerIDFromKey(key ed25519.PrivateKey) PeerID {
	var id PeerID
	copy(id[:], key.Public().(ed25519.PublicKey))
	return id
}

func (id PeerID) String() string { return hex.EncodeToString(id[:]) }

// Short is the first 10 hex characters, used in log lines.
func (id PeerID) Short() string { return id.String()[:10] }

func (id PeerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PeerID) UnmarshalText(data []byte) error {
	return decodeHexID(id[:], string(data), "peer id")
}

// ParsePeerID parses the lowercase hex form produced by PeerID.String.
func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

func comparePeers(a, b PeerID) int {
	return slices.Compare(a[:], b[:])
}

func decodeHexID(dst []byte, s, what string) error {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid %s hex: %w", what, err)
	}
	if len(raw) != IDLength {
		return fmt.Errorf("invalid %s: expected %d bytes, got %d", what, IDLength, len(raw))
	}
	copy(dst, raw)
	return nil
}

// PeerSet is an unordered set of peer ids.
type PeerSet map[PeerID]struct{}

// NewPeerSet builds a set from the given ids, ignoring duplicates.
func NewPeerSet(ids ...PeerID) PeerSet {
	set := make(PeerSet, len(ids))
	set.Add(ids...)
	return set
}

func (s PeerSet) Add(ids ...PeerID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s PeerSet) Remove(id PeerID) { delete(s, id) }

func (s PeerSet) Contains(id PeerID) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy, never nil.
func (s PeerSet) Clone() PeerSet {
	out := make(PeerSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted lists the members in ascending byte order.
func (s PeerSet) Sorted() []PeerID {
	ids := lo.Keys(s)
	slices.SortFunc(ids, comparePeers)
	return ids
}

// Strings lists the members in ascending order as hex strings.
func (s PeerSet) Strings() []string {
	return lo.Map(s.Sorted(), func(id PeerID, _ int) string { return id.String() })
}
