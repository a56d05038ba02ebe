// Package event defines the notifications a joined room produces, both as
// read from the network stream and as pushed to the UI.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"peerchat/domain"

	"github.com/google/uuid"
)

const (
	TypeJoined          = "joined"
	TypeMessageReceived = "messageReceived"
	TypePresence        = "presence"
	TypeNeighborUp      = "neighborUp"
	TypeNeighborDown    = "neighborDown"
	TypeErrored         = "errored"
	TypeDisconnected    = "disconnected"
	TypeLagged          = "lagged"
)

// ChatEvent is implemented by every notification variant.
type ChatEvent interface {
	Type() string
}

// Item is one element of an inbound event stream: either an event or a
// receive error.
type Item struct {
	Event ChatEvent
	Err   error
}

// Stream is the inbound side of a joined topic. The network closes it when
// the membership ends.
type Stream <-chan Item

// Joined is emitted once the local node has connected to the topic.
type Joined struct {
	Neighbors []domain.PeerID `json:"neighbors"`
}

// MessageReceived carries a chat message sent by another member. Topic is
// stamped by the listener of the room the message arrived on.
type MessageReceived struct {
	ID            uuid.UUID      `json:"id"`
	Topic         domain.TopicID `json:"topic"`
	From          domain.PeerID  `json:"from"`
	Nickname      string         `json:"nickname"`
	Text          string         `json:"text"`
	SentTimestamp int64          `json:"sentTimestamp"`
}

// Presence announces a member's nickname.
type Presence struct {
	From          domain.PeerID `json:"from"`
	Nickname      string        `json:"nickname"`
	SentTimestamp int64         `json:"sentTimestamp"`
}

type NeighborUp struct {
	NodeID domain.PeerID `json:"nodeId"`
}

type NeighborDown struct {
	NodeID domain.PeerID `json:"nodeId"`
}

// Errored is terminal: the stream yielded an error and the listener stopped.
type Errored struct {
	Message string `json:"message"`
}

// Disconnected is terminal: the stream was exhausted.
type Disconnected struct{}

// Lagged reports that events were dropped because the consumer fell behind.
type Lagged struct{}

func (Joined) Type() string          { return TypeJoined }
func (MessageReceived) Type() string { return TypeMessageReceived }
func (Presence) Type() string        { return TypePresence }
func (NeighborUp) Type() string      { return TypeNeighborUp }
func (NeighborDown) Type() string    { return TypeNeighborDown }
func (Errored) Type() string         { return TypeErrored }
func (Disconnected) Type() string    { return TypeDisconnected }
func (Lagged) Type() string          { return TypeLagged }

// IsTerminal reports whether evt ends a listener.
func IsTerminal(evt ChatEvent) bool {
	switch evt.(type) {
	case Errored, Disconnected:
		return true
	}
	return false
}

// Encode renders evt as a JSON object tagged with its "type".
func Encode(evt ChatEvent) ([]byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	tag := fmt.Sprintf(`{"type":%q`, evt.Type())
	if bytes.Equal(body, []byte("{}")) {
		return []byte(tag + "}"), nil
	}
	return append([]byte(tag+","), body[1:]...), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (ChatEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var (
		evt ChatEvent
		err error
	)
	switch head.Type {
	case TypeJoined:
		var e Joined
		err = json.Unmarshal(data, &e)
		evt = e
	case TypeMessageReceived:
		var e MessageReceived
		err = json.Unmarshal(data, &e)
		evt = e
	case TypePresence:
		var e Presence
		err = json.Unmarshal(data, &e)
		evt = e
	case TypeNeighborUp:
		var e NeighborUp
		err = json.Unmarshal(data, &e)
		evt = e
	case TypeNeighborDown:
		var e NeighborDown
		err = json.Unmarshal(data, &e)
		evt = e
	case TypeErrored:
		var e Errored
		err = json.Unmarshal(data, &e)
		evt = e
	case TypeDisconnected:
		evt = Disconnected{}
	case TypeLagged:
		evt = Lagged{}
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}
