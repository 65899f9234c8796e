// SPDX-License-Identifier: MPL-2.0

package isolate

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

const testGrace = 50 * time.Millisecond

func newTestBoundary(t *testing.T) *Boundary {
	t.Helper()
	return New(t.Name(), WithGracePeriod(testGrace), WithLogger(log.New(io.Discard)))
}

func waitForWorkers(t *testing.T, b *Boundary, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(b.Workers()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d workers, have %d", want, len(b.Workers()))
}

func TestBoundarySymbols(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)

	if err := b.Export("greeting", "hello"); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if err := b.Export("greeting", "again"); !errors.Is(err, ErrSymbolExists) {
		t.Errorf("duplicate Export() = %v, want ErrSymbolExists", err)
	}

	v, err := b.Lookup("greeting")
	if err != nil || v != "hello" {
		t.Fatalf("Lookup() = %v, %v", v, err)
	}
	if _, err := b.Lookup("missing"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Lookup(missing) = %v, want ErrSymbolNotFound", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := b.Lookup("greeting"); !errors.Is(err, ErrBoundaryClosed) {
		t.Errorf("Lookup after Close = %v, want ErrBoundaryClosed", err)
	}
	if err := b.Export("late", 1); !errors.Is(err, ErrBoundaryClosed) {
		t.Errorf("Export after Close = %v, want ErrBoundaryClosed", err)
	}
}

func TestBoundaryCooperativeWorker(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	stopped := make(chan struct{})

	info, err := b.Go("ticker", func(ctx context.Context) error {
		defer close(stopped)
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Go() error: %v", err)
	}
	if info.Kind != KindGoroutine || info.Name != "ticker" || info.ID == "" {
		t.Errorf("unexpected worker info: %+v", info)
	}
	if got := b.Workers(); len(got) != 1 || got[0].ID != info.ID {
		t.Fatalf("Workers() = %+v", got)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatal("worker did not observe cancellation before Close returned")
	}
	if n := len(b.Workers()); n != 0 {
		t.Errorf("Workers() after Close has %d entries", n)
	}
	if b.State() != StateClosed || !b.Closed() {
		t.Errorf("State() = %s, want closed", b.State())
	}
}

func TestBoundaryAbandonsStuckWorker(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	if _, err := b.Go("stuck", func(context.Context) error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Go() error: %v", err)
	}

	start := time.Now()
	err := b.Close()
	if elapsed := time.Since(start); elapsed < testGrace {
		t.Errorf("Close returned after %v, before the grace period", elapsed)
	}
	if !errors.Is(err, ErrCleanupFailure) || !errors.Is(err, ErrAbandonedWorker) {
		t.Fatalf("Close() = %v, want cleanup failure with abandoned worker", err)
	}
	var abandoned *AbandonedWorkerError
	if !errors.As(err, &abandoned) || abandoned.Worker.Name != "stuck" {
		t.Errorf("expected AbandonedWorkerError for stuck, got %v", err)
	}
	if !b.Closed() {
		t.Error("boundary should be closed even after cleanup failure")
	}
}

func TestBoundaryWaitsOnAbandonedWorkerOnce(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	info, err := b.Go("stuck", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Go() error: %v", err)
	}

	if err := b.StopWorker(info.ID); !errors.Is(err, ErrAbandonedWorker) {
		t.Fatalf("StopWorker() = %v, want ErrAbandonedWorker", err)
	}
	if n := len(b.Workers()); n != 0 {
		t.Errorf("abandoned worker still tracked: %d workers", n)
	}
	if err := b.StopWorker(info.ID); !errors.Is(err, ErrWorkerNotFound) {
		t.Errorf("second StopWorker() = %v, want ErrWorkerNotFound", err)
	}

	start := time.Now()
	if err := b.Close(); err != nil {
		t.Errorf("Close() = %v, want nil after the worker was already abandoned", err)
	}
	if elapsed := time.Since(start); elapsed >= testGrace {
		t.Errorf("Close waited %v on an abandoned worker", elapsed)
	}
}

func TestBoundarySeal(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	if err := b.Export("answer", 42); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	b.Seal()
	if !b.Closed() || b.State() != StateClosing {
		t.Fatalf("State() after Seal = %s, want closing", b.State())
	}
	if _, err := b.Go("late", func(context.Context) error { return nil }); !errors.Is(err, ErrBoundaryClosed) {
		t.Errorf("Go() after Seal = %v, want ErrBoundaryClosed", err)
	}
	if err := b.Export("late", 1); !errors.Is(err, ErrBoundaryClosed) {
		t.Errorf("Export() after Seal = %v, want ErrBoundaryClosed", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("State() after Close = %s, want closed", b.State())
	}
}

func TestBoundaryRecoversWorkerPanic(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	if _, err := b.Go("bad", func(context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("Go() error: %v", err)
	}
	waitForWorkers(t, b, 0)

	if err := b.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestBoundaryStopWorker(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	defer b.Close()

	info, err := b.Go("one", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Go() error: %v", err)
	}
	if _, err := b.Go("two", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil {
		t.Fatalf("Go() error: %v", err)
	}

	if err := b.StopWorker(info.ID); err != nil {
		t.Fatalf("StopWorker() error: %v", err)
	}
	waitForWorkers(t, b, 1)
	if b.Workers()[0].Name != "two" {
		t.Errorf("wrong worker stopped: %+v", b.Workers())
	}
	if err := b.StopWorker("nope"); !errors.Is(err, ErrWorkerNotFound) {
		t.Errorf("StopWorker(nope) = %v, want ErrWorkerNotFound", err)
	}
}

func TestBoundaryRejectsWorkAfterClose(t *testing.T) {
	t.Parallel()

	b := newTestBoundary(t)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := b.Go("late", func(context.Context) error { return nil }); !errors.Is(err, ErrBoundaryClosed) {
		t.Errorf("Go after Close = %v, want ErrBoundaryClosed", err)
	}
	if b.Context().Err() == nil {
		t.Error("boundary context should be cancelled")
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    State
		want string
	}{
		{StateOpen, "open"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if err := State(42).Validate(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Validate() = %v, want ErrInvalidState", err)
	}
	if err := StateClosed.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
