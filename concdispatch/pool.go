// Package concdispatch is a bounded worker pool a receiver can use to
// process many inbound frames concurrently instead of serializing
// handler execution one frame at a time. It is grounded on the
// teacher's concurrent.Master/concurrent.Worker — the atomic
// started/stopping/stopped state machine and the panic-to-error
// conversion on every worker goroutine — simplified from the teacher's
// keyed, per-request worker lifecycle down to a fixed-size pool, which
// is all a message.BoundMessageReceiver needs: every job is independent
// and there is no per-key state to create or destroy.
package concdispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/oasislabs/protorpc/stats"
)

const (
	stopped = iota
	started
	stopping
)

// Job is one unit of work submitted to a Pool. In practice this wraps a
// single *message.BoundMessageReceiver.HandleRawMessage/Async call.
type Job func(ctx context.Context) error

// Pool runs submitted Jobs across a fixed number of worker goroutines.
// A single misbehaving Job can never take down the pool: a panic inside
// Job is recovered and returned as an error to ErrorHandler, the same
// way the teacher's worker loop converts a panic into an error instead
// of letting it crash the process.
type Pool struct {
	size         int
	jobs         chan queuedJob
	errorHandler ErrorHandler

	state      uint32
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// ErrorHandler is invoked, off the submitting goroutine, whenever a Job
// returns an error or panics.
type ErrorHandler func(err error)

type queuedJob struct {
	ctx context.Context
	job Job
	out chan error
}

// Props configures a new Pool.
type Props struct {
	// Size is the number of worker goroutines. Must be positive.
	Size int

	// ErrorHandler is called for every Job failure. Defaults to a no-op
	// when nil.
	ErrorHandler ErrorHandler

	// QueueSize bounds how many submitted Jobs may be buffered ahead of
	// the workers. Defaults to Size*4 when zero.
	QueueSize int
}

// NewPool creates a new, unstarted Pool.
func NewPool(props Props) *Pool {
	if props.Size <= 0 {
		panic("concdispatch: Props.Size must be positive")
	}

	queueSize := props.QueueSize
	if queueSize == 0 {
		queueSize = props.Size * 4
	}

	errorHandler := props.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(error) {}
	}

	return &Pool{
		size:         props.Size,
		jobs:         make(chan queuedJob, queueSize),
		errorHandler: errorHandler,
		state:        stopped,
	}
}

// Start launches the pool's worker goroutines. It is an error to Start
// a pool that is already started.
func (p *Pool) Start() error {
	if !atomic.CompareAndSwapUint32(&p.state, stopped, started) {
		return fmt.Errorf("concdispatch: pool is not stopped")
	}

	p.shutdownCh = make(chan struct{})
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}

	return nil
}

// Stop signals every worker to exit after its current Job, and blocks
// until they have all returned.
func (p *Pool) Stop() error {
	if !atomic.CompareAndSwapUint32(&p.state, started, stopping) {
		return fmt.Errorf("concdispatch: pool is not started")
	}

	close(p.shutdownCh)
	p.wg.Wait()

	atomic.StoreUint32(&p.state, stopped)
	return nil
}

// Health reports the pool's current standing for a health checker:
// Healthy while running, Drain while Stop is winding workers down, and
// Unhealthy once stopped (including before the first Start).
func (p *Pool) Health() stats.HealthStatus {
	switch atomic.LoadUint32(&p.state) {
	case started:
		return stats.Healthy
	case stopping:
		return stats.Drain
	default:
		return stats.Unhealthy
	}
}

// Submit enqueues job and blocks until a worker has run it (or ctx is
// cancelled first). The job itself still observes ctx for its own
// cancellation once a worker picks it up.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	out := make(chan error, 1)

	select {
	case p.jobs <- queuedJob{ctx: ctx, job: job, out: out}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.shutdownCh:
		return fmt.Errorf("concdispatch: pool is stopped")
	}

	select {
	case err := <-out:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) runWorker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.shutdownCh:
			return
		case qj := <-p.jobs:
			err := p.runJob(qj)
			if err != nil {
				p.errorHandler(err)
			}
			qj.out <- err
		}
	}
}

func (p *Pool) runJob(qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorFromPanic(r)
		}
	}()

	return qj.job(qj.ctx)
}

func errorFromPanic(r interface{}) error {
	stacktrace := debug.Stack()

	switch x := r.(type) {
	case string:
		return fmt.Errorf("concdispatch: job panicked: %s\n%s", x, string(stacktrace))
	case error:
		return fmt.Errorf("concdispatch: job panicked: %s\n%s", x.Error(), string(stacktrace))
	default:
		return fmt.Errorf("concdispatch: job panicked: %+v\n%s", r, string(stacktrace))
	}
}
