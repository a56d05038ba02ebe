package loopback

import (
	"context"
	"sync"
	"time"

	"peerchat/contract"
	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/errors"

	"github.com/google/uuid"
)

type node struct {
	network *Network
	id      domain.PeerID

	mu          sync.Mutex
	shutdown    bool
	memberships map[domain.TopicID]*membership
}

func (nd *node) LocalID() domain.PeerID { return nd.id }

// Join ignores the ticket's bootstrap set: every member of a topic is
// reachable on a loopback network.
func (nd *node) Join(ctx context.Context, ticket domain.ChatTicket, nickname string) (contract.Sender, event.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if nd.shutdown {
		return nil, nil, errors.ErrNodeShutdown
	}
	m, err := nd.network.join(nd, ticket.TopicID(), nickname)
	if err != nil {
		return nil, nil, err
	}
	nd.memberships[ticket.TopicID()] = m
	return &sender{node: nd, membership: m}, m.events, nil
}

func (nd *node) RemoteInfo() []contract.RemoteInfo {
	return nd.network.remoteInfo(nd.id)
}

// Shutdown leaves every topic and frees the node id for a later Spawn.
func (nd *node) Shutdown(ctx context.Context) error {
	nd.mu.Lock()
	if nd.shutdown {
		nd.mu.Unlock()
		return nil
	}
	nd.shutdown = true
	memberships := nd.memberships
	nd.memberships = make(map[domain.TopicID]*membership)
	nd.mu.Unlock()

	for _, m := range memberships {
		nd.network.leave(m)
	}
	nd.network.remove(nd)
	nd.network.log.Info("Loopback node shut down", "node", nd.id.Short())
	return ctx.Err()
}

func (nd *node) forget(m *membership) {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if nd.memberships[m.topic] == m {
		delete(nd.memberships, m.topic)
	}
}

// membership is one node's subscription to one topic.
type membership struct {
	peer   domain.PeerID
	topic  domain.TopicID
	events chan event.Item

	mu       sync.Mutex
	nickname string
	lastSeen time.Time
	lagged   bool
	closed   bool
}

// deliver never blocks. When the buffer is full the event is dropped and a
// Lagged marker is queued ahead of the next event that fits.
func (m *membership) deliver(evt event.ChatEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.lagged {
		select {
		case m.events <- event.Item{Event: event.Lagged{}}:
			m.lagged = false
		default:
			return
		}
	}
	select {
	case m.events <- event.Item{Event: evt}:
	default:
		m.lagged = true
	}
}

func (m *membership) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
}

func (m *membership) touch(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen = at
}

func (m *membership) seen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

func (m *membership) setNickname(nickname string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nickname = nickname
	return nickname
}

func (m *membership) currentNickname() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nickname
}

type sender struct {
	node       *node
	membership *membership
}

func (s *sender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.node.network.broadcast(s.membership, event.MessageReceived{
		ID:            uuid.New(),
		From:          s.membership.peer,
		Nickname:      s.membership.currentNickname(),
		Text:          text,
		SentTimestamp: s.node.network.now().UnixMicro(),
	})
}

func (s *sender) SetNickname(ctx context.Context, nickname string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.node.network.broadcast(s.membership, event.Presence{
		From:          s.membership.peer,
		Nickname:      s.membership.setNickname(nickname),
		SentTimestamp: s.node.network.now().UnixMicro(),
	})
}

// Close leaves the topic. It is safe to call more than once.
func (s *sender) Close() error {
	s.node.network.leave(s.membership)
	s.node.forget(s.membership)
	return nil
}
