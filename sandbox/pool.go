package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool is the fixed-size pool of pre-initialized Sandboxes handed out
// round-robin (spec.md §4.3 C3). Size is isolatePoolSize (default 8).
type Pool struct {
	slots  []*Slot
	size   int
	memMB  int
	logger *slog.Logger

	mu        sync.Mutex
	freeList  []int // indices of slots currently not in use
	released  chan struct{}
	destroyed bool
}

// NewPool pre-warms size slots, each seeded with bundle.
func NewPool(size int, bundle Bundle, memoryCapMB int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		slots:    make([]*Slot, size),
		size:     size,
		memMB:    memoryCapMB,
		logger:   logger,
		released: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.slots[i] = newSlot(i, bundle, memoryCapMB, logger)
		p.freeList = append(p.freeList, i)
	}
	return p
}

// Acquire returns the next free slot round-robin, blocking until one is
// available or ctx is cancelled (spec.md §4.3: "blocks if all are in use").
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	for {
		p.mu.Lock()
		if p.destroyed {
			p.mu.Unlock()
			return nil, fmt.Errorf("sandbox: pool destroyed")
		}
		if len(p.freeList) > 0 {
			idx := p.freeList[0]
			p.freeList = p.freeList[1:]
			p.mu.Unlock()
			return p.slots[idx], nil
		}
		wait := p.released
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Release returns slot to the pool, resetting it so no prior workflow state
// leaks to the next run (spec.md §3 SandboxSlot invariant).
func (p *Pool) Release(slot *Slot) {
	slot.reset(p.currentBundle())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.freeList = append(p.freeList, slot.id)
	close(p.released)
	p.released = make(chan struct{})
}

func (p *Pool) currentBundle() Bundle {
	if len(p.slots) == 0 {
		return Bundle{}
	}
	p.slots[0].mu.Lock()
	defer p.slots[0].mu.Unlock()
	return p.slots[0].bundle
}

// Destroy tears the whole pool down (spec.md §4.3, called during STOPPED).
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	for _, s := range p.slots {
		s.Dispose()
	}
	close(p.released)
	p.logger.Info("sandbox pool destroyed", slog.Int("size", p.size))
}

// Size returns the pool's fixed slot count.
func (p *Pool) Size() int { return p.size }
