package services

import (
	"context"
	"encoding/json"
	"fmt"

	"peerchat/errors"
	"peerchat/runtime"
)

const (
	CommandInit              = "init"
	CommandCreateRoom        = "createRoom"
	CommandJoinRoom          = "joinRoom"
	CommandSendMessage       = "sendMessage"
	CommandSetNickname       = "setNickname"
	CommandGetNickname       = "getNickname"
	CommandLeaveRoom         = "leaveRoom"
	CommandDisconnect        = "disconnect"
	CommandGetNodeID         = "getNodeId"
	CommandGetPeers          = "getPeers"
	CommandGetLatestTicket   = "getLatestTicket"
	CommandGenerateTicket    = "generateTicket"
	CommandGetNeighbors      = "getNeighbors"
	CommandGetChannelInfo    = "getChannelInfo"
	CommandGetVisitedRooms   = "getVisitedRooms"
	CommandDeleteVisitedRoom = "deleteVisitedRoom"
	CommandGetMessages       = "getMessages"
	CommandSearchMessages    = "searchMessages"
)

type handler func(ctx context.Context, args json.RawMessage) (any, error)

// CommandRouter maps UI command names to ChatService calls. Arguments are
// a JSON object whose fields are named after the call's parameters.
type CommandRouter struct {
	handlers map[string]handler
}

type roomArgs struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type joinArgs struct {
	Ticket   string `json:"ticket"`
	Nickname string `json:"nickname"`
}

type textArgs struct {
	Text string `json:"text"`
}

type nicknameArgs struct {
	Nickname string `json:"nickname"`
}

type ticketArgs struct {
	Opts runtime.TicketOpts `json:"opts"`
}

type topicArgs struct {
	Topic string `json:"topic"`
}

type pageArgs struct {
	Topic  string `json:"topic"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type searchArgs struct {
	Topic string `json:"topic"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func NewCommandRouter(svc IChatService) *CommandRouter {
	return &CommandRouter{handlers: map[string]handler{
		CommandInit: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, svc.Init(ctx)
		},
		CommandCreateRoom: withArgs(func(ctx context.Context, a roomArgs) (any, error) {
			return svc.CreateRoom(ctx, a.Name, a.Nickname)
		}),
		CommandJoinRoom: withArgs(func(ctx context.Context, a joinArgs) (any, error) {
			return nil, svc.JoinRoom(ctx, a.Ticket, a.Nickname)
		}),
		CommandSendMessage: withArgs(func(ctx context.Context, a textArgs) (any, error) {
			return nil, svc.SendMessage(ctx, a.Text)
		}),
		CommandSetNickname: withArgs(func(ctx context.Context, a nicknameArgs) (any, error) {
			return nil, svc.SetNickname(ctx, a.Nickname)
		}),
		CommandGetNickname: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetNickname()
		},
		CommandLeaveRoom: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return svc.LeaveRoom(ctx)
		},
		CommandDisconnect: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return svc.Disconnect(ctx)
		},
		CommandGetNodeID: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetNodeID()
		},
		CommandGetPeers: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetPeers()
		},
		CommandGetLatestTicket: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetLatestTicket()
		},
		CommandGenerateTicket: withArgs(func(_ context.Context, a ticketArgs) (any, error) {
			return svc.GenerateTicket(a.Opts)
		}),
		CommandGetNeighbors: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetNeighbors()
		},
		CommandGetChannelInfo: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetChannelInfo()
		},
		CommandGetVisitedRooms: func(context.Context, json.RawMessage) (any, error) {
			return svc.GetVisitedRooms()
		},
		CommandDeleteVisitedRoom: withArgs(func(_ context.Context, a topicArgs) (any, error) {
			return nil, svc.DeleteVisitedRoom(a.Topic)
		}),
		CommandGetMessages: withArgs(func(_ context.Context, a pageArgs) (any, error) {
			return svc.GetMessages(a.Topic, a.Limit, a.Offset)
		}),
		CommandSearchMessages: withArgs(func(ctx context.Context, a searchArgs) (any, error) {
			return svc.SearchMessages(ctx, a.Topic, a.Query, a.Limit)
		}),
	}}
}

// Dispatch runs command with its raw JSON arguments.
func (r *CommandRouter) Dispatch(ctx context.Context, command string, args json.RawMessage) (any, error) {
	h, ok := r.handlers[command]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownCommand, command)
	}
	return h(ctx, args)
}

func withArgs[T any](fn func(ctx context.Context, args T) (any, error)) handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("%w: %w", errors.ErrInvalidArgument, err)
			}
		}
		return fn(ctx, args)
	}
}
