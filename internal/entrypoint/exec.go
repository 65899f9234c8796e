// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modhost/modhost/internal/isolate"
	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
)

// ErrInvalidExecPath is returned when an exec entry does not name a file
// inside the package directory.
var ErrInvalidExecPath = errors.New("invalid exec entry path")

// ExecModule runs an executable from the package while the module is
// enabled.
type ExecModule struct {
	desc *modmanifest.Descriptor
	path string

	mu       sync.Mutex
	host     hostapi.Host
	workerID string
}

// NewExecModule resolves and checks the executable named by d's entry.
func NewExecModule(d *modmanifest.Descriptor) (*ExecModule, error) {
	path, err := ResolveExecPath(d.Dir, d.Entry.Target())
	if err != nil {
		return nil, err
	}
	return &ExecModule{desc: d, path: path}, nil
}

// ResolveExecPath joins target onto dir and rejects absolute paths, paths
// escaping dir, and anything that is not a regular file.
func ResolveExecPath(dir, target string) (string, error) {
	if target == "" || filepath.IsAbs(target) {
		return "", fmt.Errorf("%w: %q must be relative to the package", ErrInvalidExecPath, target)
	}

	full := filepath.Join(dir, filepath.FromSlash(target))
	rel, err := filepath.Rel(dir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the package directory", ErrInvalidExecPath, target)
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExecPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a regular file", ErrInvalidExecPath, target)
	}
	return full, nil
}

// OnLoad keeps the host handle for later hooks.
func (m *ExecModule) OnLoad(_ context.Context, host hostapi.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host = host
	return nil
}

// OnEnable starts the executable as a process worker.
func (m *ExecModule) OnEnable(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.workerID != "" {
		return nil
	}

	cmd := exec.Command(m.path)
	cmd.Dir = m.desc.Dir
	cmd.Env = append(os.Environ(), "MODHOST_MODULE="+string(m.desc.Name))
	if dataDir, err := m.host.DataDir(); err == nil {
		cmd.Env = append(cmd.Env, "MODHOST_DATA_DIR="+dataDir)
	}
	out := m.host.Logger().StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}).Writer()
	cmd.Stdout = out
	cmd.Stderr = out

	id, err := m.host.StartProcess(filepath.Base(m.path), cmd)
	if err != nil {
		return err
	}
	m.workerID = id
	return nil
}

// OnDisable stops the process started by OnEnable.
func (m *ExecModule) OnDisable(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.workerID == "" {
		return nil
	}
	id := m.workerID
	m.workerID = ""
	if err := m.host.StopWorker(id); err != nil && !errors.Is(err, isolate.ErrWorkerNotFound) {
		return err
	}
	return nil
}
