// Package workerbus implements the worker-per-stage message-passing
// model of spec.md §5/§6: a command/reply envelope keyed by a
// correlation id, dispatched over an in-process channel bus by default
// and, for a remotely-configured worker, over a WebSocket transport
// grounded on the teacher's internal/network/websocket.go.
package workerbus

import "github.com/google/uuid"

// Request is the `{id, command, data}` envelope of spec.md §5.
type Request struct {
	ID      string
	Command string
	Data    any
}

// Response is the `{id, command, result?, error?}` reply envelope.
type Response struct {
	ID      string
	Command string
	Result  any
	Err     error
}

// NewRequest builds a Request with a fresh correlation id, grounded on
// the request/session identifier pattern surveyed in the retrieved pack
// repos that use google/uuid for the same purpose.
func NewRequest(command string, data any) Request {
	return Request{ID: uuid.NewString(), Command: command, Data: data}
}

// Worker is the request/response command interface every stage
// implements, keyed by the correlation id in Request.ID. NewRequest makes
// that id a random UUID: ids are unique but carry no ordering.
type Worker interface {
	// Name identifies the worker for logging and dispatch routing.
	Name() string
	// Handle processes one request synchronously and returns its reply.
	// Ordering guarantee: the Bus serializes requests to a single worker
	// in dispatch order, per spec.md §5.
	Handle(req Request) Response
}
