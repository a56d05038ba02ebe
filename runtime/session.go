package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"peerchat/contract"
	"peerchat/domain"
	"peerchat/errors"
	"peerchat/repositories"
)

// NoRoom is returned by LeaveRoom when no room was joined.
const NoRoom = "none"

type activeChannel struct {
	channel  *Channel
	listener *listenerHandle
}

// Session owns the network node and the single active channel of the
// process. It moves between three states: no node, node ready, and channel
// active (a sub-state of node ready).
//
// Every field has its own lock so a slow join never blocks readers of the
// others. Locks are always taken in this order: node, channel, nickname,
// latest ticket.
type Session struct {
	log             *slog.Logger
	spawner         contract.Spawner
	history         repositories.IRoomHistoryRepository
	sink            contract.EventSink
	restartInterval time.Duration
	liveListeners   atomic.Int32

	nodeMu sync.RWMutex
	node   contract.Node

	channelMu sync.Mutex
	active    *activeChannel

	nicknameMu sync.Mutex
	nickname   *string

	ticketMu     sync.Mutex
	latestTicket *string
}

func NewSession(
	log *slog.Logger,
	spawner contract.Spawner,
	history repositories.IRoomHistoryRepository,
	sink contract.EventSink,
	restartInterval time.Duration,
) *Session {
	return &Session{
		log:             log,
		spawner:         spawner,
		history:         history,
		sink:            sink,
		restartInterval: restartInterval,
	}
}

// Init spawns the node with the persisted secret key. Calling it while a
// node is running is a no-op and keeps the active channel.
func (s *Session) Init(ctx context.Context) error {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()
	if s.node != nil {
		s.log.Debug("Init called, node already running")
		return nil
	}

	key, err := s.history.SecretKey()
	if err != nil {
		return err
	}
	node, err := s.spawner.Spawn(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to spawn node: %w", err)
	}
	s.node = node

	s.channelMu.Lock()
	s.dropLocked()
	s.channelMu.Unlock()
	s.setNickname(nil)
	s.setLatestTicket(nil)

	s.log.Info("Node initialized", "node", node.LocalID().String())
	return nil
}

// CreateRoom leaves the current room, joins a fresh topic named name and
// returns the ticket others can use to join, bootstrapping on this node.
func (s *Session) CreateRoom(ctx context.Context, name, nickname string) (string, error) {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	if s.node == nil {
		return "", errors.ErrNodeNotInitialized
	}

	s.channelMu.Lock()
	defer s.channelMu.Unlock()
	s.leaveLocked()

	ticket := domain.NewNamedTicket(name)
	channel, err := JoinChannel(ctx, s.node, ticket, nickname)
	if err != nil {
		return "", err
	}
	s.activateLocked(channel)

	serialized := ticket.WithBootstrap(s.node.LocalID()).Serialize()
	s.remember(channel, nickname, serialized)

	s.log.Info("Created and joined room", "topic", channel.ID(), "name", name)
	return serialized, nil
}

// JoinRoom leaves the current room and joins the room described by ticket.
func (s *Session) JoinRoom(ctx context.Context, ticket, nickname string) error {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	if s.node == nil {
		return errors.ErrNodeNotInitialized
	}

	s.channelMu.Lock()
	defer s.channelMu.Unlock()
	s.leaveLocked()

	parsed, err := domain.DeserializeTicket(ticket)
	if err != nil {
		return err
	}
	channel, err := JoinChannel(ctx, s.node, parsed, nickname)
	if err != nil {
		return err
	}
	s.activateLocked(channel)
	s.remember(channel, nickname, ticket)

	s.log.Info("Joined room", "topic", channel.ID(), "name", parsed.Name())
	return nil
}

// SendMessage broadcasts text to the active room.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	channel, err := s.channel()
	if err != nil {
		return err
	}
	if reason, closed := channel.Closed(); closed {
		return fmt.Errorf("%w: %s", errors.ErrSendFailed, reason)
	}
	if err := channel.Sender().Send(ctx, text); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSendFailed, err)
	}
	return nil
}

// SetNickname persists name and, when a room is active, announces it.
// The announcement is best effort.
func (s *Session) SetNickname(ctx context.Context, name string) error {
	if err := s.history.SetNickname(name); err != nil {
		return err
	}
	s.setNickname(&name)

	channel, err := s.channel()
	if err != nil {
		s.log.Debug("Nickname stored, not in a room")
		return nil
	}
	if err := channel.Sender().SetNickname(ctx, name); err != nil {
		s.log.Warn("Failed to announce nickname", "topic", channel.ID(), "error", err)
	}
	return nil
}

// LeaveRoom persists the room snapshot, stops the listener and drops the
// channel. It returns the id of the room left, or NoRoom.
func (s *Session) LeaveRoom(ctx context.Context) (string, error) {
	s.channelMu.Lock()
	defer s.channelMu.Unlock()
	if id := s.leaveLocked(); id != "" {
		return id, nil
	}
	return NoRoom, nil
}

// Disconnect leaves the room and shuts the node down. It reports false when
// no node was running.
func (s *Session) Disconnect(ctx context.Context) (bool, error) {
	s.nodeMu.Lock()
	defer s.nodeMu.Unlock()

	s.channelMu.Lock()
	s.leaveLocked()
	s.channelMu.Unlock()

	if s.node == nil {
		s.log.Debug("Disconnect called, but node was not running")
		return false, nil
	}
	node := s.node
	s.node = nil
	if err := node.Shutdown(ctx); err != nil {
		return true, fmt.Errorf("node shutdown failed: %w", err)
	}
	s.log.Info("Node shut down")
	return true, nil
}

// TopicID returns the topic of the active room.
func (s *Session) TopicID() (domain.TopicID, error) {
	channel, err := s.channel()
	if err != nil {
		return domain.TopicID{}, err
	}
	return channel.TopicID(), nil
}

// Sender returns the send handle of the active room.
func (s *Session) Sender() (contract.Sender, error) {
	channel, err := s.channel()
	if err != nil {
		return nil, err
	}
	return channel.Sender(), nil
}

// GenerateTicket serializes a ticket for the active room.
func (s *Session) GenerateTicket(opts TicketOpts) (string, error) {
	channel, err := s.channel()
	if err != nil {
		return "", err
	}
	ticket := channel.GenerateTicket(opts)
	s.log.Debug("Generated ticket", "opts", opts, "bootstrap", len(ticket.Bootstrap()))
	return ticket.Serialize(), nil
}

// Neighbors lists the peers currently visible in the active room.
func (s *Session) Neighbors() ([]string, error) {
	channel, err := s.channel()
	if err != nil {
		return nil, err
	}
	return channel.Neighbors(), nil
}

// RoomInfo returns the id and name of the active room.
func (s *Session) RoomInfo() (string, string, error) {
	channel, err := s.channel()
	if err != nil {
		return "", "", err
	}
	return channel.ID(), channel.Name(), nil
}

// NodeID returns the local peer id.
func (s *Session) NodeID() (domain.PeerID, error) {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	if s.node == nil {
		return domain.PeerID{}, errors.ErrNodeNotInitialized
	}
	return s.node.LocalID(), nil
}

// Peers returns what the node knows about remote endpoints.
func (s *Session) Peers() ([]contract.RemoteInfo, error) {
	s.nodeMu.RLock()
	defer s.nodeMu.RUnlock()
	if s.node == nil {
		return nil, errors.ErrNodeNotInitialized
	}
	return s.node.RemoteInfo(), nil
}

// Nickname returns the cached nickname, falling back to the stored one.
func (s *Session) Nickname() (string, bool, error) {
	s.nicknameMu.Lock()
	cached := s.nickname
	s.nicknameMu.Unlock()
	if cached != nil {
		return *cached, true, nil
	}
	return s.history.Nickname()
}

// LatestTicket returns the ticket of the last room created or joined.
func (s *Session) LatestTicket() (string, bool) {
	s.ticketMu.Lock()
	defer s.ticketMu.Unlock()
	if s.latestTicket == nil {
		return "", false
	}
	return *s.latestTicket, true
}

// ActiveListeners counts the listener goroutines still running.
func (s *Session) ActiveListeners() int {
	return int(s.liveListeners.Load())
}

func (s *Session) channel() (*Channel, error) {
	s.channelMu.Lock()
	defer s.channelMu.Unlock()
	if s.active == nil {
		return nil, errors.ErrNotInRoom
	}
	return s.active.channel, nil
}

// activateLocked stores channel and starts its listener. channelMu must be held.
func (s *Session) activateLocked(channel *Channel) {
	log := s.log.With("topic", channel.ID())
	listener := NewListener(log, channel.TopicID(), channel.TakeStream(), channel, s.sink)
	s.active = &activeChannel{
		channel:  channel,
		listener: startListener(log, listener, s.restartInterval, &s.liveListeners),
	}
}

// leaveLocked persists the snapshot of the active room then tears it down.
// It returns the room id, or "" when no room was active. channelMu must be
// held; it is never re-acquired here.
func (s *Session) leaveLocked() string {
	if s.active == nil {
		s.log.Debug("Leave room called, but not in a room")
		return ""
	}
	channel := s.active.channel
	if err := s.history.UpsertVisitedRoom(channel.Ticket()); err != nil {
		s.log.Error("Failed to save visited room", "topic", channel.ID(), "error", err)
	}
	s.dropLocked()
	s.log.Info("Left room", "topic", channel.ID())
	return channel.ID()
}

// dropLocked cancels the listener, waits for it, and releases the sender.
func (s *Session) dropLocked() {
	if s.active == nil {
		return
	}
	active := s.active
	s.active = nil
	active.listener.Stop()
	if err := active.channel.Sender().Close(); err != nil {
		s.log.Warn("Failed to close sender", "topic", active.channel.ID(), "error", err)
	}
}

// remember caches and persists what a successful join produced. Store
// failures are logged: the room is joined either way.
func (s *Session) remember(channel *Channel, nickname, ticket string) {
	s.setNickname(&nickname)
	s.setLatestTicket(&ticket)
	if err := s.history.SetNickname(nickname); err != nil {
		s.log.Error("Failed to save nickname", "error", err)
	}
	if err := s.history.UpsertVisitedRoom(channel.Ticket()); err != nil {
		s.log.Error("Failed to save visited room", "topic", channel.ID(), "error", err)
	}
}

func (s *Session) setNickname(nickname *string) {
	s.nicknameMu.Lock()
	defer s.nicknameMu.Unlock()
	s.nickname = nickname
}

func (s *Session) setLatestTicket(ticket *string) {
	s.ticketMu.Lock()
	defer s.ticketMu.Unlock()
	s.latestTicket = ticket
}
