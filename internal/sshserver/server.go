// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/modhost/modhost/internal/core/serverbase"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
)

const (
	defaultStartupTimeout  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	tokenBytes             = 24
)

type (
	// Console runs operator lines. *console.Console satisfies it.
	Console interface {
		Execute(ctx context.Context, line string, out io.Writer, source string) error
		Serve(ctx context.Context, in io.Reader, out io.Writer, source, prompt string) error
	}

	// Server is the SSH operator console. A Server is single-use: once
	// stopped or failed, create a new one.
	Server struct {
		*serverbase.Base

		cfg     Config
		console Console
		logger  *log.Logger

		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string
	}
)

// New validates cfg and creates a server. The server is not started; call
// Start to accept connections.
func New(cfg Config, c Console, logger *log.Logger) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}
		cfg.Token = token
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Server{
		Base:    serverbase.NewBase(),
		cfg:     cfg,
		console: c,
		logger:  logger,
	}, nil
}

// GenerateToken returns a random hex token.
func GenerateToken() (TokenValue, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return TokenValue(hex.EncodeToString(buf)), nil
}

// Token returns the operator token clients must send as their password.
func (s *Server) Token() TokenValue { return s.cfg.Token }

// Host returns the configured bind address.
func (s *Server) Host() string { return string(s.cfg.Host) }

// Address returns the bound host:port, or "" before the server runs.
func (s *Server) Address() string {
	select {
	case <-s.Started():
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		return ""
	}
}

// Port returns the bound port, or 0 before the server runs.
func (s *Server) Port() int {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

func (s *Server) newSSHServer(addr string) (*ssh.Server, error) {
	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithMiddleware(
			s.consoleMiddleware(),
			logging.MiddlewareWithLogger(s.logger),
		),
	}
	if s.cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(s.cfg.HostKeyPath))
	}
	return wish.NewServer(opts...)
}

// passwordHandler accepts any user name presenting the operator token.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Token)) == 1 {
		s.logger.Debug("operator authenticated", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return true
	}
	s.logger.Warn("invalid token authentication attempt", "user", ctx.User(), "remote", ctx.RemoteAddr())
	return false
}

// publicKeyHandler rejects all public key authentication.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}

// consoleMiddleware hands every session to the console.
func (s *Server) consoleMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			source := "ssh:" + sess.User()
			if line := sess.RawCommand(); line != "" {
				s.runLine(sess, line, source)
				return
			}
			s.runInteractive(sess, source)
			next(sess)
		}
	}
}

func (s *Server) runLine(sess ssh.Session, line, source string) {
	if err := s.console.Execute(sess.Context(), line, sess, source); err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "error: %v\n", err)
		_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
		return
	}
	_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
}

func (s *Server) runInteractive(sess ssh.Session, source string) {
	prompt := ""
	if _, _, isPty := sess.Pty(); isPty {
		prompt = s.cfg.Prompt
	}
	s.logger.Info("console session opened", "user", sess.User(), "remote", sess.RemoteAddr())
	if err := s.console.Serve(sess.Context(), sess, sess, source, prompt); err != nil {
		s.logger.Warn("console session ended with error", "user", sess.User(), "err", err)
	}
	s.logger.Info("console session closed", "user", sess.User())
}
