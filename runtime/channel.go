package runtime

import (
	"context"
	"fmt"
	"sync"

	"peerchat/contract"
	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/errors"
)

// TicketOpts selects which peers a generated ticket advertises.
type TicketOpts struct {
	IncludeMyself    bool `json:"includeMyself"`
	IncludeBootstrap bool `json:"includeBootstrap"`
	IncludeNeighbors bool `json:"includeNeighbors"`
}

// AllPeers includes every known source.
var AllPeers = TicketOpts{IncludeMyself: true, IncludeBootstrap: true, IncludeNeighbors: true}

// Channel is the live state of a joined room. The bootstrap set is fixed at
// join time; the neighbor set follows membership events through Observe.
type Channel struct {
	topicID   domain.TopicID
	name      string
	me        domain.PeerID
	bootstrap domain.PeerSet
	sender    contract.Sender

	mu          sync.Mutex
	neighbors   domain.PeerSet
	stream      event.Stream
	closed      bool
	closeReason string
}

// JoinChannel joins ticket's topic on node and wraps the returned handles.
// The local peer is added to the channel's bootstrap set.
func JoinChannel(ctx context.Context, node contract.Node, ticket domain.ChatTicket, nickname string) (*Channel, error) {
	sender, stream, err := node.Join(ctx, ticket, nickname)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrChannelJoinFailed, err)
	}
	me := node.LocalID()
	bootstrap := ticket.Bootstrap()
	bootstrap.Add(me)

	return &Channel{
		topicID:   ticket.TopicID(),
		name:      ticket.Name(),
		me:        me,
		bootstrap: bootstrap,
		sender:    sender,
		neighbors: domain.PeerSet{},
		stream:    stream,
	}, nil
}

// Observe applies membership events to the neighbor set. Every other event
// kind is ignored.
func (c *Channel) Observe(e event.ChatEvent) {
	switch evt := e.(type) {
	case event.Joined:
		c.mu.Lock()
		c.neighbors.Add(evt.Neighbors...)
		c.mu.Unlock()
	case event.NeighborUp:
		c.mu.Lock()
		c.neighbors.Add(evt.NodeID)
		c.mu.Unlock()
	case event.NeighborDown:
		c.mu.Lock()
		c.neighbors.Remove(evt.NodeID)
		c.mu.Unlock()
	}
}

// MarkClosed records that the inbound stream ended. Sends fail from then on.
func (c *Channel) MarkClosed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeReason = reason
}

// Closed reports whether the inbound stream ended, and why.
func (c *Channel) Closed() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason, c.closed
}

// TakeStream hands the inbound stream to its single consumer. Later calls
// return nil.
func (c *Channel) TakeStream() event.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	stream := c.stream
	c.stream = nil
	return stream
}

// GenerateTicket rebuilds the room ticket with the selected peers as its
// bootstrap set. With every option off the ticket carries no peer at all.
func (c *Channel) GenerateTicket(opts TicketOpts) domain.ChatTicket {
	var peers []domain.PeerID
	if opts.IncludeMyself {
		peers = append(peers, c.me)
	}
	if opts.IncludeBootstrap {
		peers = append(peers, c.bootstrap.Sorted()...)
	}
	if opts.IncludeNeighbors {
		c.mu.Lock()
		peers = append(peers, c.neighbors.Sorted()...)
		c.mu.Unlock()
	}
	return domain.NewTicket(c.topicID, c.name).WithBootstrap(peers...)
}

// Ticket is the full snapshot: myself, bootstrap and neighbors.
func (c *Channel) Ticket() domain.ChatTicket {
	return c.GenerateTicket(AllPeers)
}

// Sender returns the send handle. Every copy writes to the same path.
func (c *Channel) Sender() contract.Sender { return c.sender }

func (c *Channel) TopicID() domain.TopicID { return c.topicID }

// ID is the hex form of the topic id.
func (c *Channel) ID() string { return c.topicID.String() }

func (c *Channel) Name() string { return c.name }

// Neighbors returns the current neighbors in ascending order.
func (c *Channel) Neighbors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.neighbors.Strings()
}

// Bootstrap returns the join-time bootstrap set in ascending order.
func (c *Channel) Bootstrap() []domain.PeerID {
	return c.bootstrap.Sorted()
}
