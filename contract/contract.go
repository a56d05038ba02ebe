//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"crypto/ed25519"
	"reflect"
	"time"

	"peerchat/domain"
	"peerchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives the notifications pushed to the UI.
type EventSink interface {
	Consume(ctx context.Context, e event.ChatEvent) error
}

// Sender is the transmit half of a joined topic. Copies share the same
// underlying path; Close releases the membership.
type Sender interface {
	Send(ctx context.Context, text string) error
	SetNickname(ctx context.Context, nickname string) error
	Close() error
}

// RemoteInfo describes an endpoint known to the local node.
type RemoteInfo struct {
	ID       domain.PeerID `json:"id"`
	Topics   []string      `json:"topics"`
	LastSeen time.Time     `json:"lastSeen"`
}

// Node is a running network endpoint able to join gossip topics.
type Node interface {
	LocalID() domain.PeerID
	Join(ctx context.Context, ticket domain.ChatTicket, nickname string) (Sender, event.Stream, error)
	RemoteInfo() []RemoteInfo
	Shutdown(ctx context.Context) error
}

// Spawner starts nodes. A nil key lets the network pick a random identity.
type Spawner interface {
	Spawn(ctx context.Context, key ed25519.PrivateKey) (Node, error)
}

// NeighborObserver is the mutation entry point a listener uses to keep a
// channel's neighbor set current.
type NeighborObserver interface {
	Observe(e event.ChatEvent)
	MarkClosed(reason string)
}
