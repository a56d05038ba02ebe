package event

import (
	"crypto/ed25519"
	"testing"

	"peerchat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncode_TagsEveryVariant(t *testing.T) {
	req := require.New(t)
	_, key, err := ed25519.GenerateKey(nil)
	req.NoError(err)
	peer := domain.PeerIDFromKey(key)

	events := []ChatEvent{
		Joined{Neighbors: []domain.PeerID{peer}},
		MessageReceived{ID: uuid.New(), From: peer, Nickname: "Alice", Text: "hello", SentTimestamp: 42},
		Presence{From: peer, Nickname: "Alice", SentTimestamp: 7},
		NeighborUp{NodeID: peer},
		NeighborDown{NodeID: peer},
		Errored{Message: "boom"},
		Disconnected{},
		Lagged{},
	}

	for _, evt := range events {
		data, err := Encode(evt)
		req.NoError(err)
		req.Contains(string(data), `"type":"`+evt.Type()+`"`)

		decoded, err := Decode(data)
		req.NoError(err)
		req.Equal(evt, decoded)
	}
}

func TestEncode_NeighborUpUsesNodeIdField(t *testing.T) {
	req := require.New(t)
	peer := domain.PeerID{0xab}

	data, err := Encode(NeighborUp{NodeID: peer})

	req.NoError(err)
	req.JSONEq(`{"type":"neighborUp","nodeId":"`+peer.String()+`"}`, string(data))
}

func TestIsTerminal(t *testing.T) {
	req := require.New(t)
	req.True(IsTerminal(Errored{Message: "x"}))
	req.True(IsTerminal(Disconnected{}))
	req.False(IsTerminal(Lagged{}))
	req.False(IsTerminal(NeighborUp{}))
}
