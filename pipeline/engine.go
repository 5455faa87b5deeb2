package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
)

// defaultPollRate caps how fast a pipeline re-issues poll calls once a slot
// in pollTokens frees up. It is a smoothing ceiling, not the primary
// concurrency bound — pollTokens (sized to the configured
// maxConcurrent{Workflow,Activity}TaskPolls) is (grounded on
// baseWorker.pollLimiter in the temporalio reference file).
const defaultPollRate rate.Limit = 1000

// Engine is the shared poll / group-entry / bounded-dispatch loop both the
// workflow and activity pipelines are built from (spec.md §4.2). T is the
// decoded task type (proto.WorkflowActivation or proto.ActivityTask).
//
// pollTokens bounds the number of poll calls concurrently in flight without
// having yet entered a group — sized to maxConcurrentTaskPolls and returned
// to the channel the instant a decoded task enters its group, which is
// exactly spec.md §4.2's backpressure rule ("not invoking poll again until
// the prior decoded task has entered its group"), generalized to N
// concurrent pollers the same way baseWorker.pollerRequestCh does in the
// temporalio reference file. execSem separately bounds how many groups may
// be mid-processing at once (maxConcurrentTaskExecutions).
type Engine[T any] struct {
	logger      *slog.Logger
	execSem     *semaphore.Weighted
	pollTokens  chan struct{}
	pollLimiter *rate.Limiter
	wg          sync.WaitGroup
}

func newEngine[T any](maxConcurrentExecutions, maxConcurrentPolls int64, logger *slog.Logger) *Engine[T] {
	if maxConcurrentExecutions < 1 {
		maxConcurrentExecutions = 1
	}
	if maxConcurrentPolls < 1 {
		maxConcurrentPolls = 1
	}
	e := &Engine[T]{
		logger:      logger,
		execSem:     semaphore.NewWeighted(maxConcurrentExecutions),
		pollTokens:  make(chan struct{}, maxConcurrentPolls),
		pollLimiter: rate.NewLimiter(defaultPollRate, 1),
	}
	for i := int64(0); i < maxConcurrentPolls; i++ {
		e.pollTokens <- struct{}{}
	}
	return e
}

// run drives poll/enter/dispatch until the lifecycle gate closes the loop
// (spec.md §4.1 polling gate) or poll returns a non-shutdown error, which is
// treated as fatal and returned to the caller. enter performs the fast,
// synchronous "task has entered its group" step and returns the (possibly
// slow) processing closure to run under the execution concurrency bound.
func (e *Engine[T]) run(ctx context.Context, controller *lifecycle.Controller, stop <-chan struct{}, poll func(context.Context) (T, error), enter func(T) func(context.Context)) error {
	errCh := make(chan error, 1)

	for {
		if !controller.AwaitPollable(stop) {
			e.wg.Wait()
			return nil
		}

		select {
		case err := <-errCh:
			e.wg.Wait()
			return err
		default:
		}

		select {
		case <-e.pollTokens:
		case <-stop:
			e.wg.Wait()
			return nil
		case <-ctx.Done():
			e.wg.Wait()
			return nil
		}

		if err := e.pollLimiter.Wait(ctx); err != nil {
			e.pollTokens <- struct{}{}
			e.wg.Wait()
			return nil
		}

		e.wg.Add(1)
		go e.pollOne(ctx, poll, enter, errCh)
	}
}

func (e *Engine[T]) pollOne(ctx context.Context, poll func(context.Context) (T, error), enter func(T) func(context.Context), errCh chan<- error) {
	defer e.wg.Done()

	task, err := poll(ctx)
	if err != nil {
		e.pollTokens <- struct{}{}
		if !bridge.IsShutdown(err) {
			select {
			case errCh <- err:
			default:
			}
		}
		return
	}

	process := enter(task)
	e.pollTokens <- struct{}{}

	if err := e.execSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer e.execSem.Release(1)
	process(ctx)
}
