// SPDX-License-Identifier: MPL-2.0

package builtins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modhost/modhost/pkg/hostapi"
)

// ErrUsage is returned when a kv command gets the wrong arguments.
var ErrUsage = errors.New("usage")

// KV exposes the module's store namespace as console commands in the "kv"
// group.
type KV struct {
	hostapi.BaseModule
	store hostapi.Store
}

// OnLoad registers kv-get, kv-set, kv-del and kv-keys.
func (m *KV) OnLoad(_ context.Context, host hostapi.Host) error {
	m.store = host.Store()

	cmds := []*hostapi.CommandFunc{
		{CommandName: "kv-get", Summary: "print the value of a key", Fn: m.get},
		{CommandName: "kv-set", Summary: "set a key to a value", Fn: m.set},
		{CommandName: "kv-del", Summary: "delete a key", Fn: m.del},
		{CommandName: "kv-keys", Summary: "list keys", Fn: m.keys},
	}
	for _, c := range cmds {
		if err := host.RegisterCommand("kv", c); err != nil {
			return err
		}
	}
	return nil
}

func (m *KV) get(ctx context.Context, cc *hostapi.CommandContext) error {
	if len(cc.Args) != 1 {
		return fmt.Errorf("%w: kv-get <key>", ErrUsage)
	}
	v, ok, err := m.store.Get(ctx, cc.Args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("key %q not set", cc.Args[0])
	}
	_, err = fmt.Fprintln(cc.Out, string(v))
	return err
}

func (m *KV) set(ctx context.Context, cc *hostapi.CommandContext) error {
	if len(cc.Args) < 2 {
		return fmt.Errorf("%w: kv-set <key> <value...>", ErrUsage)
	}
	return m.store.Put(ctx, cc.Args[0], []byte(strings.Join(cc.Args[1:], " ")))
}

func (m *KV) del(ctx context.Context, cc *hostapi.CommandContext) error {
	if len(cc.Args) != 1 {
		return fmt.Errorf("%w: kv-del <key>", ErrUsage)
	}
	return m.store.Delete(ctx, cc.Args[0])
}

func (m *KV) keys(ctx context.Context, cc *hostapi.CommandContext) error {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(cc.Out, k); err != nil {
			return err
		}
	}
	return nil
}
