package tool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
)

const (
	// DefaultPoolSize bounds how many tool executions run concurrently
	// across all batches.
	DefaultPoolSize = 10
	// DefaultTaskTimeout bounds one pooled execution, measured from
	// submission rather than from slot acquisition.
	DefaultTaskTimeout = 120 * time.Second
)

// WorkerPool runs tool executions with bounded concurrency. One pool is
// shared by every batch dispatched during the process lifetime and is
// closed exactly once at application exit.
type WorkerPool struct {
	sem     *semaphore.Weighted
	timeout time.Duration

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	once   sync.Once
}

// NewWorkerPool creates a pool running at most size tasks concurrently.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &WorkerPool{
		sem:     semaphore.NewWeighted(int64(size)),
		timeout: DefaultTaskTimeout,
	}
}

// Submit schedules fn and returns a Future resolving to its outcome. The
// task deadline starts now: time spent waiting for a free slot counts
// against it, so a task stuck behind a saturated pool still times out on
// schedule.
func (p *WorkerPool) Submit(ctx context.Context, name string, fn func(context.Context) (*Result, error)) *Future {
	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	f := &Future{
		name:    name,
		timeout: p.timeout,
		start:   time.Now(),
		ctx:     tctx,
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		f.resolve(nil, cmderr.New(cmderr.Unknown, name, "worker pool is closed"))
		return f
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()

		if err := p.sem.Acquire(tctx, 1); err != nil {
			f.resolve(nil, queueError(name, tctx, p.timeout))
			return
		}
		defer p.sem.Release(1)

		f.resolve(fn(tctx))
	}()

	return f
}

// Close rejects further submissions and waits for in-flight tasks to drain.
// Safe to call more than once.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func queueError(name string, ctx context.Context, timeout time.Duration) *cmderr.Error {
	if ctx.Err() == context.DeadlineExceeded {
		return cmderr.Newf(cmderr.Timeout, name, "task did not start within %s", timeout)
	}
	return cmderr.New(cmderr.ProcessKilled, name, "task cancelled while queued")
}

// Future is the pending outcome of one pooled execution.
type Future struct {
	name    string
	timeout time.Duration
	start   time.Time
	ctx     context.Context
	done    chan struct{}

	mu       sync.Mutex
	res      *Result
	err      error
	duration time.Duration
}

func (f *Future) resolve(res *Result, err error) {
	f.mu.Lock()
	f.res = res
	f.err = err
	f.duration = time.Since(f.start)
	f.mu.Unlock()
	close(f.done)
}

// Wait blocks until the task resolves or its submission deadline passes. A
// deadline hit reports a TIMEOUT error; the abandoned task keeps running
// until fn returns, but its result is discarded.
func (f *Future) Wait() (*Result, error) {
	select {
	case <-f.done:
	default:
		select {
		case <-f.done:
		case <-f.ctx.Done():
			if f.ctx.Err() == context.DeadlineExceeded {
				return nil, cmderr.Newf(cmderr.Timeout, f.name, "tool did not finish within %s", f.timeout)
			}
			return nil, cmderr.New(cmderr.ProcessKilled, f.name, "tool cancelled before completion")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.err
}

// Duration reports how long the task has run, measured from submission.
// After resolution it is fixed at the total run time.
func (f *Future) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.duration > 0 {
		return f.duration
	}
	return time.Since(f.start)
}
