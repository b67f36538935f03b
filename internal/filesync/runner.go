// Package filesync invokes the external file synchronization job.
package filesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoConsole = errors.New("no console binary found for file sync")
	ErrTimeout   = errors.New("file sync timed out")
)

// Runner runs one synchronization. A nil error means the job completed.
type Runner interface {
	Run(ctx context.Context) error
}

type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Coalescing bounds every run by timeout and batches callers: a caller that
// arrives while a run is in progress waits for the next run, which starts
// once the current one finishes and is shared by everyone queued behind it.
// Every caller is therefore covered by a run that started after it arrived.
// Runs are detached from the caller's cancellation so a disconnecting client
// does not abort a run other callers are waiting on.
type Coalescing struct {
	runner  Runner
	timeout time.Duration

	mu      sync.Mutex
	running bool
	next    *pendingRun
}

type pendingRun struct {
	done chan struct{}
	err  error
}

func NewCoalescing(runner Runner, timeout time.Duration) *Coalescing {
	return &Coalescing{runner: runner, timeout: timeout}
}

func (c *Coalescing) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.next == nil {
		c.next = &pendingRun{done: make(chan struct{})}
	}
	run := c.next
	if !c.running {
		c.running = true
		go c.drain(context.WithoutCancel(ctx))
	}
	c.mu.Unlock()

	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain starts queued runs one after another until nobody is waiting.
func (c *Coalescing) drain(ctx context.Context) {
	for {
		c.mu.Lock()
		run := c.next
		c.next = nil
		if run == nil {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		run.err = c.runOnce(ctx)
		close(run.done)
	}
}

func (c *Coalescing) runOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.runner.Run(runCtx)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
	}
	return err
}
