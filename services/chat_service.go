package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"peerchat/auth"
	"peerchat/contract"
	"peerchat/domain"
	"peerchat/errors"
	"peerchat/repositories"
	"peerchat/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	Init(ctx context.Context) error
	CreateRoom(ctx context.Context, name, nickname string) (string, error)
	JoinRoom(ctx context.Context, ticket, nickname string) error
	SendMessage(ctx context.Context, text string) error
	SetNickname(ctx context.Context, nickname string) error
	GetNickname() (*string, error)
	LeaveRoom(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) (bool, error)
	GetNodeID() (string, error)
	GetPeers() ([]contract.RemoteInfo, error)
	GetLatestTicket() (*RoomView, error)
	GenerateTicket(opts runtime.TicketOpts) (string, error)
	GetNeighbors() ([]string, error)
	GetChannelInfo() (ChannelInfo, error)
	GetVisitedRooms() ([]RoomView, error)
	DeleteVisitedRoom(topic string) error
	GetMessages(topic string, limit, offset int) ([]MessageView, error)
	SearchMessages(ctx context.Context, topic, query string, limit int) ([]MessageView, error)
}

// RoomView is how a room is shown in the lobby.
type RoomView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ticket string `json:"ticket"`
	// LastMessageAt is in microseconds, like MessageView.SentTimestamp.
	LastMessageAt *int64 `json:"lastMessageAt,omitempty"`
}

// MessageView is a stored message as the UI renders it. It carries the
// same fields as a live MessageReceived event.
type MessageView struct {
	ID            string `json:"id"`
	Topic         string `json:"topic"`
	From          string `json:"from"`
	Nickname      string `json:"nickname"`
	Text          string `json:"text"`
	SentTimestamp int64  `json:"sentTimestamp"`
}

type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatService is the command surface offered to the UI. It validates input
// and delegates to the session, the room history and the message history.
type ChatService struct {
	log      *slog.Logger
	session  *runtime.Session
	history  repositories.IRoomHistoryRepository
	messages repositories.IMessageRepository
}

func NewChatService(
	log *slog.Logger,
	session *runtime.Session,
	history repositories.IRoomHistoryRepository,
	messages repositories.IMessageRepository,
) *ChatService {
	return &ChatService{log: log, session: session, history: history, messages: messages}
}

func (s *ChatService) Init(ctx context.Context) error {
	return s.session.Init(ctx)
}

func (s *ChatService) CreateRoom(ctx context.Context, name, nickname string) (string, error) {
	if err := auth.Validate(auth.RoomRequest{Name: name, Nickname: nickname}); err != nil {
		return "", err
	}
	return s.session.CreateRoom(ctx, name, nickname)
}

func (s *ChatService) JoinRoom(ctx context.Context, ticket, nickname string) error {
	if err := auth.Validate(auth.JoinRequest{Ticket: ticket, Nickname: nickname}); err != nil {
		return err
	}
	return s.session.JoinRoom(ctx, ticket, nickname)
}

func (s *ChatService) SendMessage(ctx context.Context, text string) error {
	if err := auth.Validate(auth.MessageRequest{Text: text}); err != nil {
		return err
	}
	topic, err := s.session.TopicID()
	if err != nil {
		return err
	}
	if err := s.session.SendMessage(ctx, text); err != nil {
		return err
	}
	s.recordSent(topic, text)
	return nil
}

// recordSent keeps our own message in the room history, since the network
// never delivers it back to us. The message is already sent, so a storage
// failure is only logged.
func (s *ChatService) recordSent(topic domain.TopicID, text string) {
	from, err := s.session.NodeID()
	if err != nil {
		s.log.Warn("Sent message not stored", "topic", topic.String(), "error", err)
		return
	}
	nickname, _, err := s.session.Nickname()
	if err != nil {
		s.log.Warn("Nickname unavailable for stored message", "error", err)
	}
	err = s.messages.StoreMessage(repositories.StoredMessage{
		ID:       uuid.New(),
		Topic:    topic,
		From:     from,
		Nickname: nickname,
		Text:     text,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Error("Failed to store sent message", "topic", topic.String(), "error", err)
	}
}

func (s *ChatService) SetNickname(ctx context.Context, nickname string) error {
	if err := auth.Validate(auth.NicknameRequest{Nickname: nickname}); err != nil {
		return err
	}
	return s.session.SetNickname(ctx, nickname)
}

// GetNickname returns nil when no nickname was ever set.
func (s *ChatService) GetNickname() (*string, error) {
	nickname, ok, err := s.session.Nickname()
	if err != nil || !ok {
		return nil, err
	}
	return &nickname, nil
}

func (s *ChatService) LeaveRoom(ctx context.Context) (string, error) {
	return s.session.LeaveRoom(ctx)
}

func (s *ChatService) Disconnect(ctx context.Context) (bool, error) {
	return s.session.Disconnect(ctx)
}

func (s *ChatService) GetNodeID() (string, error) {
	id, err := s.session.NodeID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *ChatService) GetPeers() ([]contract.RemoteInfo, error) {
	return s.session.Peers()
}

// GetLatestTicket returns nil when no room was created or joined since Init.
func (s *ChatService) GetLatestTicket() (*RoomView, error) {
	serialized, ok := s.session.LatestTicket()
	if !ok {
		return nil, nil
	}
	ticket, err := domain.DeserializeTicket(serialized)
	if err != nil {
		return nil, err
	}
	return &RoomView{ID: ticket.TopicID().String(), Name: ticket.Name(), Ticket: serialized}, nil
}

func (s *ChatService) GenerateTicket(opts runtime.TicketOpts) (string, error) {
	return s.session.GenerateTicket(opts)
}

func (s *ChatService) GetNeighbors() ([]string, error) {
	return s.session.Neighbors()
}

func (s *ChatService) GetChannelInfo() (ChannelInfo, error) {
	id, name, err := s.session.RoomInfo()
	if err != nil {
		return ChannelInfo{}, err
	}
	return ChannelInfo{ID: id, Name: name}, nil
}

// GetVisitedRooms lists the room history, most recently visited first.
func (s *ChatService) GetVisitedRooms() ([]RoomView, error) {
	rooms, err := s.history.VisitedRooms()
	if err != nil {
		return nil, err
	}
	return lo.Reverse(lo.Map(rooms, func(room repositories.VisitedRoom, _ int) RoomView {
		view := RoomView{
			ID:     room.Ticket.TopicID().String(),
			Name:   room.Ticket.Name(),
			Ticket: room.Ticket.Serialize(),
		}
		at, ok, err := s.messages.LastMessageAt(room.Ticket.TopicID())
		if err != nil {
			s.log.Warn("Last message unavailable", "topic", view.ID, "error", err)
		}
		if ok {
			view.LastMessageAt = lo.ToPtr(at.UnixMicro())
		}
		return view
	})), nil
}

// DeleteVisitedRoom forgets a room and every message kept for it.
func (s *ChatService) DeleteVisitedRoom(topic string) error {
	id, err := parseTopic(topic)
	if err != nil {
		return err
	}
	if err := s.history.DeleteVisitedRoom(id.String()); err != nil {
		return err
	}
	removed, err := s.messages.DeleteMessages(id)
	if err != nil {
		return err
	}
	s.log.Debug("Deleted room messages", "topic", id.String(), "count", removed)
	return nil
}

// GetMessages pages through the stored messages of a room, newest page
// first. Each page is in chronological order.
func (s *ChatService) GetMessages(topic string, limit, offset int) ([]MessageView, error) {
	if err := auth.Validate(auth.HistoryRequest{Limit: limit, Offset: offset}); err != nil {
		return nil, err
	}
	id, err := parseTopic(topic)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.GetMessages(id, limit, offset)
	if err != nil {
		return nil, err
	}
	return toMessageViews(messages), nil
}

// SearchMessages returns the stored messages of a room matching query,
// most recent first.
func (s *ChatService) SearchMessages(ctx context.Context, topic, query string, limit int) ([]MessageView, error) {
	if err := auth.Validate(auth.SearchRequest{Query: query, Limit: limit}); err != nil {
		return nil, err
	}
	id, err := parseTopic(topic)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.SearchMessages(ctx, id, query, limit)
	if err != nil {
		return nil, err
	}
	return toMessageViews(messages), nil
}

func parseTopic(topic string) (domain.TopicID, error) {
	id, err := domain.ParseTopicID(topic)
	if err != nil {
		return domain.TopicID{}, fmt.Errorf("%w: %w", errors.ErrInvalidArgument, err)
	}
	return id, nil
}

func toMessageViews(messages []repositories.StoredMessage) []MessageView {
	return lo.Map(messages, func(m repositories.StoredMessage, _ int) MessageView {
		return MessageView{
			ID:            m.ID.String(),
			Topic:         m.Topic.String(),
			From:          m.From.String(),
			Nickname:      m.Nickname,
			Text:          m.Text,
			SentTimestamp: m.SentAt.UnixMicro(),
		}
	})
}
