// SPDX-License-Identifier: MPL-2.0

package isolate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// DefaultGracePeriod is how long Close waits for each worker to honor
// cancellation before forcing it.
const DefaultGracePeriod = 3 * time.Second

var (
	// ErrBoundaryClosed is returned by every operation on a closing or
	// closed boundary.
	ErrBoundaryClosed = errors.New("isolation boundary closed")
	// ErrSymbolNotFound is returned by Lookup for unknown symbols.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrSymbolExists is returned when a symbol is exported twice.
	ErrSymbolExists = errors.New("symbol already exported")
	// ErrWorkerNotFound is returned by StopWorker for unknown IDs.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrCleanupFailure is the sentinel wrapped by CleanupError.
	ErrCleanupFailure = errors.New("boundary cleanup failed")
)

type (
	// Boundary owns the resources of one loaded module. A Boundary is
	// single-use: once closed, create a new one.
	Boundary struct {
		owner  string
		grace  time.Duration
		logger *log.Logger

		state  atomic.Int32
		ctx    context.Context
		cancel context.CancelFunc

		mu      sync.Mutex
		symbols map[string]any
		workers map[string]*worker

		closeOnce sync.Once
		closeErr  error
	}

	// Option configures a Boundary.
	Option func(*Boundary)

	// CleanupError aggregates every failure seen while closing a boundary.
	CleanupError struct {
		Owner string
		Cause error
	}
)

// WithGracePeriod overrides DefaultGracePeriod. Non-positive values are ignored.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Boundary) {
		if d > 0 {
			b.grace = d
		}
	}
}

// WithLogger sets the logger used for worker faults and forced termination.
func WithLogger(l *log.Logger) Option {
	return func(b *Boundary) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an open boundary for owner.
func New(owner string, opts ...Option) *Boundary {
	b := &Boundary{
		owner:   owner,
		grace:   DefaultGracePeriod,
		symbols: make(map[string]any),
		workers: make(map[string]*worker),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: owner})
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.state.Store(int32(StateOpen))
	return b
}

// Error implements the error interface.
func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of %s failed: %v", e.Owner, e.Cause)
}

// Unwrap exposes both ErrCleanupFailure and the individual causes.
func (e *CleanupError) Unwrap() []error {
	return append([]error{ErrCleanupFailure}, multierr.Errors(e.Cause)...)
}

// Owner returns the name the boundary was created for.
func (b *Boundary) Owner() string { return b.owner }

// GracePeriod returns the per-worker wait used by Close.
func (b *Boundary) GracePeriod() time.Duration { return b.grace }

// State returns the current state (lock-free).
func (b *Boundary) State() State { return State(b.state.Load()) }

// Closed reports whether Seal or Close has started.
func (b *Boundary) Closed() bool { return b.State() != StateOpen }

// Seal moves an open boundary to StateClosing without stopping anything.
// Exports, lookups and new workers are refused from then on; Close still
// has to run.
func (b *Boundary) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
}

// Context is cancelled when Close starts. Work rooted in the boundary
// should derive from it.
func (b *Boundary) Context() context.Context { return b.ctx }

// Export publishes value under symbol.
func (b *Boundary) Export(symbol string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Closed() {
		return ErrBoundaryClosed
	}
	if _, exists := b.symbols[symbol]; exists {
		return fmt.Errorf("%w: %s", ErrSymbolExists, symbol)
	}
	b.symbols[symbol] = value
	return nil
}

// Lookup resolves symbol. It fails with ErrBoundaryClosed once Close has
// started.
func (b *Boundary) Lookup(symbol string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Closed() {
		return nil, ErrBoundaryClosed
	}
	v, ok := b.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return v, nil
}

// Go runs fn on a new goroutine rooted in the boundary. A panic in fn is
// recovered and logged.
func (b *Boundary) Go(name string, fn func(ctx context.Context) error) (WorkerInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Closed() {
		return WorkerInfo{}, ErrBoundaryClosed
	}

	w := b.newWorker(name, KindGoroutine)
	b.workers[w.info.ID] = w

	go func() {
		defer b.release(w)
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("worker panicked", "worker", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		if err := fn(w.ctx); err != nil && !isCancellation(err) {
			b.logger.Warn("worker exited with error", "worker", name, "err", err)
		}
	}()

	return w.info, nil
}

// StartProcess starts cmd and tracks it as a worker. The process is sent an
// interrupt when the boundary closes and killed if it outlives the grace
// period.
func (b *Boundary) StartProcess(name string, cmd *exec.Cmd) (WorkerInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Closed() {
		return WorkerInfo{}, ErrBoundaryClosed
	}
	if cmd.WaitDelay == 0 {
		// Bounds how long Wait blocks on output pipes held by orphans.
		cmd.WaitDelay = b.grace
	}
	if err := cmd.Start(); err != nil {
		return WorkerInfo{}, fmt.Errorf("start process %s: %w", name, err)
	}

	w := b.newWorker(name, KindProcess)
	w.cmd = cmd
	w.info.PID = cmd.Process.Pid
	b.workers[w.info.ID] = w

	go func() {
		defer b.release(w)
		if err := cmd.Wait(); err != nil && w.ctx.Err() == nil {
			b.logger.Warn("process exited with error", "worker", name, "pid", w.info.PID, "err", err)
		}
	}()

	return w.info, nil
}

// Workers lists tracked workers ordered by start time. Abandoned workers
// are no longer tracked.
func (b *Boundary) Workers() []WorkerInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]WorkerInfo, 0, len(b.workers))
	for _, w := range b.workers {
		infos = append(infos, w.info)
	}
	slices.SortFunc(infos, func(a, c WorkerInfo) int {
		if n := a.Started.Compare(c.Started); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, c.ID)
	})
	return infos
}

// StopWorker cancels a single worker and waits for it the same way Close
// does.
func (b *Boundary) StopWorker(id string) error {
	b.mu.Lock()
	w, ok := b.workers[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}
	return b.stop(w)
}

// Close cancels the boundary context, stops every worker and clears the
// symbol table. It is idempotent; later calls return the first result.
func (b *Boundary) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.close()
	})
	return b.closeErr
}

func (b *Boundary) close() error {
	b.mu.Lock()
	b.state.Store(int32(StateClosing))
	pending := make([]*worker, 0, len(b.workers))
	for _, w := range b.workers {
		pending = append(pending, w)
	}
	b.mu.Unlock()

	b.cancel()

	slices.SortFunc(pending, func(a, c *worker) int { return a.info.Started.Compare(c.info.Started) })

	var errs error
	for _, w := range pending {
		errs = multierr.Append(errs, b.stop(w))
	}

	b.mu.Lock()
	clear(b.symbols)
	b.mu.Unlock()
	b.state.Store(int32(StateClosed))

	if errs != nil {
		return &CleanupError{Owner: b.owner, Cause: errs}
	}
	return nil
}

// stop requests cooperative cancellation, waits the grace period, and then
// forces the worker. A worker that still has not exited is dropped from
// tracking, so it is waited on at most once.
func (b *Boundary) stop(w *worker) error {
	w.cancel()

	var errs error
	if w.info.Kind == KindProcess {
		errs = multierr.Append(errs, w.interrupt())
	}
	if w.wait(b.grace) {
		return errs
	}

	if w.info.Kind == KindProcess {
		b.logger.Warn("forcing process termination", "worker", w.info.Name, "pid", w.info.PID, "grace", b.grace)
		errs = multierr.Append(errs, w.kill())
		if w.wait(b.grace) {
			return errs
		}
	} else {
		b.logger.Error("abandoning worker that ignored cancellation", "worker", w.info.Name, "id", w.info.ID, "grace", b.grace)
	}
	b.forget(w)
	return multierr.Append(errs, &AbandonedWorkerError{Owner: b.owner, Worker: w.info})
}

func (b *Boundary) forget(w *worker) {
	b.mu.Lock()
	delete(b.workers, w.info.ID)
	b.mu.Unlock()
}

func (b *Boundary) newWorker(name string, kind WorkerKind) *worker {
	ctx, cancel := context.WithCancel(b.ctx)
	return &worker{
		info: WorkerInfo{
			ID:      uuid.NewString(),
			Name:    name,
			Kind:    kind,
			Started: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (b *Boundary) release(w *worker) {
	b.forget(w)
	w.cancel()
	close(w.done)
}
