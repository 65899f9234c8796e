// SPDX-License-Identifier: MPL-2.0

package isolate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

const (
	// KindGoroutine is a worker started with Boundary.Go.
	KindGoroutine WorkerKind = "goroutine"
	// KindProcess is a worker started with Boundary.StartProcess.
	KindProcess WorkerKind = "process"
)

// ErrAbandonedWorker marks a goroutine that ignored cancellation past the
// grace period. Go offers no way to kill it, so it is left running.
var ErrAbandonedWorker = errors.New("worker did not stop within grace period")

type (
	// WorkerKind distinguishes goroutine workers from subprocess workers.
	WorkerKind string

	// WorkerInfo describes a live worker.
	WorkerInfo struct {
		ID      string
		Name    string
		Kind    WorkerKind
		PID     int
		Started time.Time
	}

	// AbandonedWorkerError names a worker left running after Close.
	AbandonedWorkerError struct {
		Owner  string
		Worker WorkerInfo
	}

	worker struct {
		info   WorkerInfo
		cmd    *exec.Cmd
		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
	}
)

// Error implements the error interface.
func (e *AbandonedWorkerError) Error() string {
	return fmt.Sprintf("%s: %s worker %q (%s) did not stop within grace period", e.Owner, e.Worker.Kind, e.Worker.Name, e.Worker.ID)
}

// Unwrap returns ErrAbandonedWorker for errors.Is() compatibility.
func (e *AbandonedWorkerError) Unwrap() error { return ErrAbandonedWorker }

// Uptime returns how long the worker has been running.
func (w WorkerInfo) Uptime() time.Duration {
	return time.Since(w.Started)
}

// wait blocks until the worker exits or the timeout elapses.
func (w *worker) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-w.done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return true
	case <-t.C:
		return false
	}
}

// interrupt asks a process worker to exit. Windows has no SIGINT delivery
// for child processes, so it falls straight through to Kill.
func (w *worker) interrupt() error {
	if w.cmd == nil || w.cmd.Process == nil {
		return nil
	}
	if runtime.GOOS == "windows" {
		return w.kill()
	}
	if err := w.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt %s: %w", w.info.Name, err)
	}
	return nil
}

func (w *worker) kill() error {
	if w.cmd == nil || w.cmd.Process == nil {
		return nil
	}
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", w.info.Name, err)
	}
	return nil
}

// isCancellation reports whether err only says the worker's context ended.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
