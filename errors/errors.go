package errors

import "fmt"

var (
	ErrNodeNotInitialized = fmt.Errorf("node not initialized")
	ErrNotInRoom          = fmt.Errorf("not currently in a room")
	ErrInvalidTicket      = fmt.Errorf("invalid ticket")
	ErrChannelJoinFailed  = fmt.Errorf("failed to join topic")
	ErrSendFailed         = fmt.Errorf("failed to send message")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrUnknownCommand     = fmt.Errorf("unknown command")
	ErrSealedKey          = fmt.Errorf("secret key is sealed with a passphrase")
	ErrNodeShutdown       = fmt.Errorf("node is shut down")
	ErrNodeRunning        = fmt.Errorf("a node with this key is already running")
	ErrAlreadyJoined      = fmt.Errorf("topic already joined by this node")
	ErrMembershipClosed   = fmt.Errorf("topic membership closed")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
)
