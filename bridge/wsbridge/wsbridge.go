// Package wsbridge is a concrete bridge.Native transport used for tests and
// the cmd/worker demo. Production workers talk to the real native bridge
// over FFI; this package stands in for it over a websocket so the core can
// be exercised end to end without that dependency (spec.md treats the
// Bridge purely as an external contract — SPEC_FULL.md §"SUPPLEMENTED
// FEATURES").
package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tailored-agentic-units/worker-core/bridge"
)

type op string

const (
	opPollWorkflow     op = "pollWorkflowActivation"
	opPollActivity     op = "pollActivityTask"
	opCompleteWorkflow op = "completeWorkflowActivation"
	opCompleteActivity op = "completeActivityTask"
	opHeartbeat        op = "recordActivityHeartbeat"
	opWorkerShutdown   op = "workerShutdown"
	opCompleteShutdown op = "completeShutdown"
)

type envelope struct {
	ID      string `json:"id"`
	Op      op     `json:"op"`
	Body    []byte `json:"body,omitempty"`
	Err     string `json:"err,omitempty"`
	Draining bool  `json:"draining,omitempty"`
}

// Client implements bridge.Native over a single websocket connection,
// correlating requests and responses by envelope ID.
type Client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan envelope
	draining atomic.Bool
	closeOnce sync.Once
	readErr  atomic.Value
}

// Dial opens a websocket connection to addr and starts the response reader.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan envelope),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.readErr.Store(err)
			c.failAllPending(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.Draining {
			c.draining.Store(true)
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- env
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- envelope{ID: id, Err: err.Error()}
		delete(c.pending, id)
	}
}

func (c *Client) call(ctx context.Context, o op, body []byte) ([]byte, error) {
	req := envelope{ID: uuid.Must(uuid.NewV7()).String(), Op: o, Body: body}

	replyCh := make(chan envelope, 1)
	c.mu.Lock()
	c.pending[req.ID] = replyCh
	c.mu.Unlock()

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: marshal request: %w", err)
	}

	if err := c.conn.Write(ctx, websocket.MessageText, raw); err != nil {
		return nil, fmt.Errorf("wsbridge: write request: %w", err)
	}

	select {
	case reply := <-replyCh:
		if reply.Err != "" {
			return nil, fmt.Errorf("wsbridge: %s: %s", o, reply.Err)
		}
		return reply.Body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) PollWorkflowActivation(ctx context.Context) ([]byte, error) {
	if c.draining.Load() {
		return nil, bridge.ErrShutdown
	}
	return c.call(ctx, opPollWorkflow, nil)
}

func (c *Client) PollActivityTask(ctx context.Context) ([]byte, error) {
	if c.draining.Load() {
		return nil, bridge.ErrShutdown
	}
	return c.call(ctx, opPollActivity, nil)
}

func (c *Client) CompleteWorkflowActivation(ctx context.Context, encoded []byte) error {
	_, err := c.call(ctx, opCompleteWorkflow, encoded)
	return err
}

func (c *Client) CompleteActivityTask(ctx context.Context, encoded []byte) error {
	_, err := c.call(ctx, opCompleteActivity, encoded)
	return err
}

func (c *Client) RecordActivityHeartbeat(ctx context.Context, encoded []byte) error {
	_, err := c.call(ctx, opHeartbeat, encoded)
	return err
}

func (c *Client) WorkerShutdown(ctx context.Context) error {
	_, err := c.call(ctx, opWorkerShutdown, nil)
	return err
}

func (c *Client) CompleteShutdown(ctx context.Context) error {
	_, err := c.call(ctx, opCompleteShutdown, nil)
	c.closeOnce.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "worker shutdown complete")
	})
	return err
}

