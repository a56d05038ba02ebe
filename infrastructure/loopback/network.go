// Package loopback is an in-process implementation of the networking
// contract. Every node spawned on a Network reaches every other member of a
// topic directly, without gossip, which makes it suitable for local demos
// and integration tests.
package loopback

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"peerchat/contract"
	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/errors"

	"github.com/samber/lo"
)

const defaultBufferSize = 64

// Network routes events between the memberships of each topic.
type Network struct {
	log        *slog.Logger
	bufferSize int
	now        func() time.Time

	mu     sync.RWMutex
	nodes  map[domain.PeerID]*node
	topics map[domain.TopicID]map[domain.PeerID]*membership // topic -> members
}

func NewNetwork(log *slog.Logger, bufferSize int) *Network {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Network{
		log:        log,
		bufferSize: bufferSize,
		now:        time.Now,
		nodes:      make(map[domain.PeerID]*node),
		topics:     make(map[domain.TopicID]map[domain.PeerID]*membership),
	}
}

// Spawn starts a node identified by the public half of key. A nil key picks
// a random identity.
func (n *Network) Spawn(ctx context.Context, key ed25519.PrivateKey) (contract.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil {
		_, generated, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, err
		}
		key = generated
	}
	id := domain.PeerIDFromKey(key)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nodes[id]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNodeRunning, id.Short())
	}
	nd := &node{network: n, id: id, memberships: make(map[domain.TopicID]*membership)}
	n.nodes[id] = nd
	n.log.Info("Loopback node spawned", "node", id.Short())
	return nd, nil
}

// join registers a membership and announces it. The joiner receives the
// current members, the others receive NeighborUp.
func (n *Network) join(nd *node, topic domain.TopicID, nickname string) (*membership, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nodes[nd.id]; !ok {
		return nil, errors.ErrNodeShutdown
	}
	members, ok := n.topics[topic]
	if !ok {
		members = make(map[domain.PeerID]*membership)
		n.topics[topic] = members
	}
	if _, ok := members[nd.id]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadyJoined, topic)
	}

	m := &membership{
		peer:     nd.id,
		topic:    topic,
		nickname: nickname,
		lastSeen: n.now(),
		events:   make(chan event.Item, n.bufferSize),
	}
	current := lo.Keys(members)
	sort.Slice(current, func(i, j int) bool { return current[i].String() < current[j].String() })
	for _, other := range members {
		other.deliver(event.NeighborUp{NodeID: nd.id})
	}
	members[nd.id] = m
	if len(current) > 0 {
		m.deliver(event.Joined{Neighbors: current})
	}
	n.log.Debug("Topic joined", "node", nd.id.Short(), "topic", topic, "members", len(members))
	return m, nil
}

// broadcast hands evt to every member of from's topic except from.
func (n *Network) broadcast(from *membership, evt event.ChatEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	members := n.topics[from.topic]
	if members[from.peer] != from {
		return errors.ErrMembershipClosed
	}
	from.touch(n.now())
	for peer, m := range members {
		if peer == from.peer {
			continue
		}
		m.deliver(evt)
	}
	return nil
}

// leave removes m from its topic, tells the remaining members and closes
// m's stream. Leaving twice is a no-op.
func (n *Network) leave(m *membership) {
	n.mu.Lock()
	defer n.mu.Unlock()
	members := n.topics[m.topic]
	if members[m.peer] != m {
		return
	}
	delete(members, m.peer)
	if len(members) == 0 {
		delete(n.topics, m.topic)
	}
	for _, other := range members {
		other.deliver(event.NeighborDown{NodeID: m.peer})
	}
	m.close()
	n.log.Debug("Topic left", "node", m.peer.Short(), "topic", m.topic)
}

func (n *Network) remove(nd *node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, nd.id)
}

// remoteInfo describes every other node sharing at least one topic with id.
func (n *Network) remoteInfo(id domain.PeerID) []contract.RemoteInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()

	infos := make(map[domain.PeerID]*contract.RemoteInfo)
	for topic, members := range n.topics {
		if _, ok := members[id]; !ok {
			continue
		}
		for peer, m := range members {
			if peer == id {
				continue
			}
			info, ok := infos[peer]
			if !ok {
				info = &contract.RemoteInfo{ID: peer}
				infos[peer] = info
			}
			info.Topics = append(info.Topics, topic.String())
			if seen := m.seen(); seen.After(info.LastSeen) {
				info.LastSeen = seen
			}
		}
	}

	result := lo.Map(lo.Values(infos), func(info *contract.RemoteInfo, _ int) contract.RemoteInfo {
		sort.Strings(info.Topics)
		return *info
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result
}
