// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/config"
)

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.ModulesDir = "/srv/modules"
	cfg.DisabledModules = []string{"ticker"}
	cfg.Console.SSH.Token = "secret-token"

	res := runCLI(t, staticConfig{cfg: cfg}, "", "config", "show")
	if res.err != nil {
		t.Fatalf("config show error: %v", res.err)
	}
	for _, want := range []string{"(using defaults)", "/srv/modules", "ticker", "grace_period", "3s", "127.0.0.1:2222"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, "secret-token") {
		t.Error("config show must not print the SSH token")
	}
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	res := runCLI(t, staticConfig{cfg: cfg}, "", "config", "dump")
	if res.err != nil {
		t.Fatalf("config dump error: %v", res.err)
	}
	if res.stdout != config.GenerateCUE(cfg) {
		t.Errorf("dump output differs from GenerateCUE:\n%s", res.stdout)
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "modhost")
	res := runCLI(t, staticConfig{cfg: config.DefaultConfig()}, "", "config", "init", "--dir", dir)
	if res.err != nil {
		t.Fatalf("config init error: %v", res.err)
	}

	path := filepath.Join(dir, "config.cue")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "modules_dir") {
		t.Errorf("unexpected config content:\n%s", data)
	}
	if !strings.Contains(res.stdout, path) {
		t.Errorf("stdout should name the file: %q", res.stdout)
	}
}
