package heartbeat

import (
	"context"
	"log/slog"

	"github.com/tailored-agentic-units/worker-core/bridge"
)

// Consumer drains a Queue and forwards each heartbeat to the bridge,
// fire-and-forget (spec.md §4.6). Exactly one Consumer runs per worker.
type Consumer struct {
	queue  *Queue
	bridge bridge.Bridge
	logger *slog.Logger
}

// NewConsumer builds a Consumer. logger defaults to slog.Default() if nil.
func NewConsumer(queue *Queue, b bridge.Bridge, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: queue, bridge: b, logger: logger}
}

// Run blocks forwarding heartbeats until the queue is closed and drained
// (spec.md §4.6: "closed exactly when state becomes DRAINED — at which
// point there can be no in-flight activities, so the queue is empty").
func (c *Consumer) Run(ctx context.Context) {
	for {
		items, closed := c.queue.drain()
		for _, h := range items {
			if err := c.bridge.RecordActivityHeartbeat(ctx, h); err != nil {
				c.logger.Warn("heartbeat: record failed", slog.String("error", err.Error()))
			}
		}
		if closed {
			return
		}
		if ctx.Err() != nil {
			return
		}

		select {
		case <-c.queue.signal:
		case <-ctx.Done():
			return
		}
	}
}
