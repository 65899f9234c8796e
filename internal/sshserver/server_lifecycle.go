// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/ssh"
)

// Start listens and serves in the background. It returns once the server
// accepts connections, fails, or the startup timeout passes.
func (s *Server) Start(ctx context.Context) error {
	if err := s.BeginStart(ctx); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(string(s.cfg.Host), strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.Fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.LastError()
	}

	srv, err := s.newSSHServer(addr)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		s.Fail(fmt.Errorf("failed to create SSH server: %w", err))
		return s.LastError()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	s.Go(func() { s.serve(srv, listener) })

	select {
	case <-s.Started():
		s.logger.Info("SSH console listening", "address", s.Address())
		return nil
	case <-startupCtx.Done():
		s.Fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		_ = srv.Close()
		return s.LastError()
	}
}

func (s *Server) serve(srv *ssh.Server, listener net.Listener) {
	s.MarkRunning()
	err := srv.Serve(listener)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	s.Report(fmt.Errorf("serve error: %w", err))
}

// Stop shuts the server down, closing sessions still open after the
// shutdown timeout. Safe to call multiple times.
func (s *Server) Stop() error {
	if !s.BeginStop() {
		s.Wait()
		return nil
	}

	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()

	var shutdownErr error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("closing console sessions still open after shutdown timeout")
			} else {
				shutdownErr = err
			}
			_ = srv.Close() //nolint:errcheck // Best-effort cleanup during shutdown
		}
	}

	s.FinishStop()
	s.logger.Info("SSH console stopped")
	return shutdownErr
}
