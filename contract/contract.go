//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"homechat/domain/event"
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

// EventSink is one connected client's inbox for relay events.
// Consume must never block the relay hot path.
type EventSink interface {
	Consume(ctx context.Context, e event.RelayEvent) error
}

// IRegistry is the single source of truth for "is this user reachable
// right now". All mutations go through Register/Unregister; no other
// actor writes presence state.
type IRegistry interface {
	Register(userID, connID string, sink EventSink)
	Unregister(connID string) (userID string, wasCurrent bool)
	Lookup(userID string) (EventSink, bool)
	Online() []string
	Sinks() map[string]EventSink
	Count() int
}

// IRouter forwards a relay event toward its recipient, echoing delivery
// confirmations to the originating sink where the protocol requires it.
type IRouter interface {
	Route(ctx context.Context, origin EventSink, e event.RelayEvent)
}
