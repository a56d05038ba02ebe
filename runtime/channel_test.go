package runtime

import (
	"context"
	"crypto/ed25519"
	"testing"

	"peerchat/domain"
	"peerchat/domain/event"
	"peerchat/errors"
	"peerchat/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func randomPeer(t *testing.T) domain.PeerID {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return domain.PeerIDFromKey(key)
}

func joinTestChannel(t *testing.T, me domain.PeerID, ticket domain.ChatTicket) *Channel {
	ctrl := gomock.NewController(t)
	node := mocks.NewMockNode(ctrl)
	sender := mocks.NewMockSender(ctrl)
	node.EXPECT().Join(gomock.Any(), ticket, "alice").Return(sender, make(chan event.Item), nil)
	node.EXPECT().LocalID().Return(me).AnyTimes()

	channel, err := JoinChannel(context.Background(), node, ticket, "alice")
	require.NoError(t, err)
	return channel
}

func Test_Channel_Neighbors_Follow_Membership_Events(t *testing.T) {
	req := require.New(t)
	a, b, c := randomPeer(t), randomPeer(t), randomPeer(t)
	channel := joinTestChannel(t, randomPeer(t), domain.NewNamedTicket("general"))

	// When membership events arrive in order
	channel.Observe(event.Joined{Neighbors: []domain.PeerID{a, b}})
	channel.Observe(event.NeighborUp{NodeID: c})
	channel.Observe(event.NeighborDown{NodeID: b})
	channel.Observe(event.MessageReceived{From: b, Text: "ignored"})

	// Then the neighbor set is {a, c}
	req.ElementsMatch([]string{a.String(), c.String()}, channel.Neighbors())
}

func Test_Channel_Bootstrap_Contains_Self(t *testing.T) {
	req := require.New(t)
	me, peer := randomPeer(t), randomPeer(t)
	ticket := domain.NewNamedTicket("general").WithBootstrap(peer)

	channel := joinTestChannel(t, me, ticket)

	req.ElementsMatch([]domain.PeerID{me, peer}, channel.Bootstrap())
	req.Equal(ticket.TopicID(), channel.TopicID())
	req.Equal("general", channel.Name())
	req.Equal(ticket.TopicID().String(), channel.ID())
}

func Test_Channel_GenerateTicket_Options(t *testing.T) {
	req := require.New(t)
	me, boot, neighbor := randomPeer(t), randomPeer(t), randomPeer(t)
	ticket := domain.NewNamedTicket("general").WithBootstrap(boot)
	channel := joinTestChannel(t, me, ticket)
	channel.Observe(event.NeighborUp{NodeID: neighbor})

	tests := []struct {
		name     string
		opts     TicketOpts
		expected []domain.PeerID
	}{
		{name: "nothing", opts: TicketOpts{}, expected: nil},
		{name: "myself only", opts: TicketOpts{IncludeMyself: true}, expected: []domain.PeerID{me}},
		{name: "bootstrap only", opts: TicketOpts{IncludeBootstrap: true}, expected: []domain.PeerID{me, boot}},
		{name: "neighbors only", opts: TicketOpts{IncludeNeighbors: true}, expected: []domain.PeerID{neighbor}},
		{name: "all", opts: AllPeers, expected: []domain.PeerID{me, boot, neighbor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated := channel.GenerateTicket(tt.opts)
			require.Equal(t, ticket.TopicID(), generated.TopicID())
			require.Equal(t, "general", generated.Name())
			require.ElementsMatch(t, tt.expected, generated.Bootstrap().Sorted())
		})
	}

	// Then a degenerate ticket still round trips
	parsed, err := domain.DeserializeTicket(channel.GenerateTicket(TicketOpts{}).Serialize())
	req.NoError(err)
	req.Empty(parsed.Bootstrap())
}

func Test_Channel_MarkClosed(t *testing.T) {
	req := require.New(t)
	channel := joinTestChannel(t, randomPeer(t), domain.NewNamedTicket("general"))

	_, closed := channel.Closed()
	req.False(closed)

	channel.MarkClosed("event stream ended")

	reason, closed := channel.Closed()
	req.True(closed)
	req.Equal("event stream ended", reason)
}

func Test_Channel_TakeStream_Once(t *testing.T) {
	req := require.New(t)
	channel := joinTestChannel(t, randomPeer(t), domain.NewNamedTicket("general"))

	req.NotNil(channel.TakeStream())
	req.Nil(channel.TakeStream())
}

func Test_JoinChannel_Failure_Is_Wrapped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	node := mocks.NewMockNode(ctrl)
	node.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil, context.DeadlineExceeded)

	_, err := JoinChannel(context.Background(), node, domain.NewNamedTicket("general"), "alice")

	req.ErrorIs(err, errors.ErrChannelJoinFailed)
	req.ErrorIs(err, context.DeadlineExceeded)
}
