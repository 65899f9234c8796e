// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"fmt"

	"github.com/modhost/modhost/internal/loader"
	"github.com/modhost/modhost/internal/registry"
	"github.com/modhost/modhost/pkg/modmanifest"
)

// Plan is the outcome of ordering candidates without loading them.
type Plan struct {
	// Order lists descriptors in the order LoadAll would load them,
	// assuming every load succeeds.
	Order []*modmanifest.Descriptor
	// Failed holds the candidates LoadAll would report as failed.
	Failed []Result
}

// Plan runs the LoadAll ordering against the modules loaded now, without
// instantiating anything.
func (m *Manager) Plan(candidates []loader.Candidate) Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	var plan Plan
	planned := make(map[string]bool)
	registered := func(name string) bool { return planned[name] || m.reg.Has(name) }

	var pending []*modmanifest.Descriptor
	for _, c := range candidates {
		d, err := m.loader.Describe(c.Path)
		if err != nil {
			plan.Failed = append(plan.Failed, failed(c.Path, err))
			continue
		}
		pending = append(pending, d)
	}

	for len(pending) > 0 {
		progress := false
		var deferred []*modmanifest.Descriptor
		for _, d := range pending {
			name := string(d.Name)
			if len(missingTargets(d, registered)) > 0 {
				deferred = append(deferred, d)
				continue
			}
			if registered(name) {
				plan.Failed = append(plan.Failed, failed(name, fmt.Errorf("%w: %s", registry.ErrDuplicateModule, name)))
				continue
			}
			planned[name] = true
			plan.Order = append(plan.Order, d)
			progress = true
		}
		pending = deferred

		if !progress && len(pending) > 0 {
			for _, err := range unresolved(pending, registered) {
				plan.Failed = append(plan.Failed, failed(err.Module, err))
			}
			break
		}
	}
	return plan
}
