package workerbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RemoteWorker forwards requests to a worker hosted in a different
// process over a WebSocket connection, for when a worker is configured
// as a remote endpoint (spec.md §5). It is grounded directly on the
// teacher's internal/network/websocket.go: dialer with a handshake
// timeout, a buffered read-pump channel draining inbound frames into a
// per-request waiter map keyed by correlation id.
type RemoteWorker struct {
	name string
	conn *websocket.Conn

	mu      sync.Mutex
	waiters map[string]chan Response
}

// DialRemoteWorker connects to a worker endpoint at url and starts its
// read pump. The initial `{type: "ready"}` handshake frame (spec.md §5)
// is read and discarded before returning.
func DialRemoteWorker(name, url string) (*RemoteWorker, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("workerbus: dial %s failed: %w", url, err)
	}

	rw := &RemoteWorker{name: name, conn: conn, waiters: make(map[string]chan Response)}
	if err := rw.awaitReady(); err != nil {
		conn.Close()
		return nil, err
	}
	go rw.readPump()
	return rw, nil
}

func (r *RemoteWorker) awaitReady() error {
	var ready struct {
		Type string `json:"type"`
	}
	if err := r.conn.ReadJSON(&ready); err != nil {
		return fmt.Errorf("workerbus: ready handshake failed: %w", err)
	}
	if ready.Type != "ready" {
		return fmt.Errorf("workerbus: expected ready handshake, got %q", ready.Type)
	}
	return nil
}

func (r *RemoteWorker) readPump() {
	for {
		var wire wireResponse
		if err := r.conn.ReadJSON(&wire); err != nil {
			r.failAllWaiters(err)
			return
		}
		r.deliver(wire.toResponse())
	}
}

func (r *RemoteWorker) deliver(resp Response) {
	r.mu.Lock()
	ch, ok := r.waiters[resp.ID]
	if ok {
		delete(r.waiters, resp.ID)
	}
	r.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func (r *RemoteWorker) failAllWaiters(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.waiters {
		ch <- Response{ID: id, Err: err}
		delete(r.waiters, id)
	}
}

// Name implements Worker.
func (r *RemoteWorker) Name() string { return r.name }

// Handle implements Worker by writing the request frame and blocking on
// the matching reply delivered by the read pump.
func (r *RemoteWorker) Handle(req Request) Response {
	replyC := make(chan Response, 1)
	r.mu.Lock()
	r.waiters[req.ID] = replyC
	r.mu.Unlock()

	wire := wireRequest{ID: req.ID, Command: req.Command, Data: req.Data}
	if err := r.conn.WriteJSON(wire); err != nil {
		r.mu.Lock()
		delete(r.waiters, req.ID)
		r.mu.Unlock()
		return Response{ID: req.ID, Command: req.Command, Err: err}
	}
	return <-replyC
}

type wireRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

type wireResponse struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (w wireResponse) toResponse() Response {
	resp := Response{ID: w.ID, Command: w.Command}
	if w.Error != "" {
		resp.Err = fmt.Errorf("%s", w.Error)
	} else {
		resp.Result = w.Result
	}
	return resp
}
