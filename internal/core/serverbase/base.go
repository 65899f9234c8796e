// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base is embedded by servers to get lifecycle state, a cancellation
// context and goroutine tracking.
type Base struct {
	state atomic.Int32

	mu      sync.Mutex
	lastErr error

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedCh chan struct{}
	errCh     chan error
}

// NewBase creates a Base in the created state.
func NewBase() *Base {
	b := &Base{
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	return b
}

// State returns the current state.
func (b *Base) State() State { return State(b.state.Load()) }

// IsRunning reports whether the server accepts connections.
func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err delivers asynchronous failures. It is closed after Stop completes.
func (b *Base) Err() <-chan error { return b.errCh }

// LastError returns the error that moved the server to failed.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Context is cancelled when the server stops or fails. It is nil before
// BeginStart.
func (b *Base) Context() context.Context { return b.ctx }

// Started is closed once the server is running.
func (b *Base) Started() <-chan struct{} { return b.startedCh }

// BeginStart moves created to starting. A cancelled ctx fails the server
// before any resource is acquired.
func (b *Base) BeginStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		b.Fail(fmt.Errorf("context cancelled before start: %w", err))
		return b.LastError()
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", b.State())
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// MarkRunning moves starting to running and releases Started waiters.
func (b *Base) MarkRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.startedCh)
	}
}

// Fail records err, moves to failed and cancels the context.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.Report(err)
}

// Report publishes err on Err without blocking. It is dropped when a
// previous error is still unread.
func (b *Base) Report(err error) {
	select {
	case b.errCh <- err:
	default:
	}
}

// BeginStop moves a starting or running server to stopping and cancels
// the context. It returns false when there is nothing to stop; a server
// that was never started goes straight to stopped.
func (b *Base) BeginStop() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if b.cancel != nil {
					b.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// FinishStop waits for tracked goroutines, moves to stopped and closes Err.
func (b *Base) FinishStop() {
	b.wg.Wait()
	b.state.Store(int32(StateStopped))
	close(b.errCh)
}

// Go runs fn in a tracked goroutine.
func (b *Base) Go(fn func()) {
	b.wg.Go(fn)
}

// Wait blocks until every tracked goroutine has returned.
func (b *Base) Wait() {
	b.wg.Wait()
}
