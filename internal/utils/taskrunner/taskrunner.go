// Package taskrunner runs detached units of work on a fixed set of workers.
// Callers submit and move on; a task's outcome is only logged.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("task runner is closed")

// Task is a unit of work. The context is owned by the runner, not the submitter.
type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
}

type Runner struct {
	jobs   chan job
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool

	// OnDrop is called when Submit rejects a task.
	OnDrop func(name string)
}

// New starts workers goroutines that share a queue of queueSize pending tasks.
func New(workers, queueSize int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		jobs:   make(chan job, queueSize),
		group:  &errgroup.Group{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "taskrunner").Logger(),
	}

	for i := 0; i < workers; i++ {
		r.group.Go(func() error {
			r.work()
			return nil
		})
	}
	return r
}

// Submit queues a task without blocking. It returns false when the queue is
// full or the runner has been shut down.
func (r *Runner) Submit(name string, fn Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(name, ErrClosed)
		return false
	}

	select {
	case r.jobs <- job{name: name, fn: fn}:
		return true
	default:
		r.drop(name, errors.New("queue full"))
		return false
	}
}

func (r *Runner) drop(name string, reason error) {
	r.logger.Warn().Str("task", name).Err(reason).Msg("Background task dropped")
	if r.OnDrop != nil {
		r.OnDrop(name)
	}
}

func (r *Runner) work() {
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("task", j.name).Str("panic", fmt.Sprint(rec)).Msg("Background task panicked")
		}
	}()

	if err := j.fn(r.ctx); err != nil {
		r.logger.Error().Str("task", j.name).Err(err).Msg("Background task failed")
		return
	}
	r.logger.Debug().Str("task", j.name).Msg("Background task finished")
}

// Shutdown stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, in-flight tasks see their context canceled.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
