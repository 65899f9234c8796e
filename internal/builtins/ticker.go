// SPDX-License-Identifier: MPL-2.0

package builtins

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/pkg/hostapi"
)

// DefaultTickInterval is the interval of the catalog's ticker module.
const DefaultTickInterval = 10 * time.Second

const ticksKey = "ticks"

// Ticker counts ticks on a background worker while enabled and persists the
// total in its store.
type Ticker struct {
	interval time.Duration
	count    atomic.Int64

	mu       sync.Mutex
	host     hostapi.Host
	workerID string
}

// NewTicker creates a ticker with the given interval.
func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

// Count returns the ticks seen so far.
func (t *Ticker) Count() int64 { return t.count.Load() }

// OnLoad restores the persisted count and registers the "ticks" command.
func (t *Ticker) OnLoad(ctx context.Context, host hostapi.Host) error {
	t.host = host

	raw, ok, err := host.Store().Get(ctx, ticksKey)
	switch {
	case err != nil:
		host.Logger().Warn("tick count not restored", "err", err)
	case ok:
		if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			t.count.Store(n)
		}
	}

	return host.RegisterCommand("", &hostapi.CommandFunc{
		CommandName: "ticks",
		Summary:     "show the tick count",
		Fn: func(_ context.Context, cc *hostapi.CommandContext) error {
			_, err := fmt.Fprintf(cc.Out, "%d\n", t.Count())
			return err
		},
	})
}

// OnEnable starts the tick worker.
func (t *Ticker) OnEnable(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, err := t.host.Go("ticker", t.run)
	if err != nil {
		return err
	}
	t.workerID = id
	return nil
}

// OnDisable stops the tick worker and waits for it to save.
func (t *Ticker) OnDisable(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.workerID == "" {
		return nil
	}
	id := t.workerID
	t.workerID = ""
	return t.host.StopWorker(id)
}

func (t *Ticker) run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled, so the final save gets its own.
			saveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return t.save(saveCtx)
		case <-ticker.C:
			n := t.count.Add(1)
			t.host.Logger().Debug("tick", "count", n)
		}
	}
}

func (t *Ticker) save(ctx context.Context) error {
	return t.host.Store().Put(ctx, ticksKey, []byte(strconv.FormatInt(t.Count(), 10)))
}
