// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/config"
)

func TestExplain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		contains []string
	}{
		{
			name:     "list kinds",
			args:     []string{"explain"},
			contains: []string{"manifest-invalid", "dependency-unresolved", "duplicate-module", "hook-fault", "unload-refused", "cleanup-failure"},
		},
		{
			name:     "render kind",
			args:     []string{"explain", "hook-fault", "--style", "notty"},
			contains: []string{"Module hook failed", "module load ./modules/my-module"},
		},
		{
			name:     "case insensitive",
			args:     []string{"explain", "UNLOAD-REFUSED", "--style", "notty"},
			contains: []string{"module disable"},
		},
		{
			name:    "unknown kind",
			args:    []string{"explain", "nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := runCLI(t, staticConfig{cfg: config.DefaultConfig()}, "", tt.args...)
			if (res.err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", res.err, tt.wantErr)
			}
			for _, want := range tt.contains {
				if !strings.Contains(res.stdout, want) {
					t.Errorf("output missing %q:\n%s", want, res.stdout)
				}
			}
		})
	}
}
