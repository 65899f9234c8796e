// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
	ErrInvalidHostAddress = errors.New("invalid host address")
	// ErrInvalidTokenValue is the sentinel error wrapped by InvalidTokenValueError.
	ErrInvalidTokenValue = errors.New("invalid token value")
	// ErrInvalidListenPort is returned for ports outside 0-65535.
	ErrInvalidListenPort = errors.New("invalid listen port")
	// ErrInvalidSSHConfig is the sentinel error wrapped by InvalidSSHConfigError.
	ErrInvalidSSHConfig = errors.New("invalid SSH server config")
)

type (
	// HostAddress is the address the server binds to.
	HostAddress string

	// TokenValue is the shared operator token.
	TokenValue string

	// Config holds immutable configuration for the SSH console.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host HostAddress
		// Port is the port to listen on (0 = auto-select).
		Port int
		// Token is the operator password. An empty token is replaced by a
		// random one; read it back with Server.Token.
		Token TokenValue
		// HostKeyPath is where the server's host key is kept. Wish creates
		// the key on first use.
		HostKeyPath string
		// Prompt is written before each interactive line.
		Prompt string
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout bounds the graceful part of Stop (default: 5s).
		ShutdownTimeout time.Duration
	}

	// InvalidHostAddressError is returned for an empty host address.
	InvalidHostAddressError struct {
		Value HostAddress
	}

	// InvalidTokenValueError is returned for a blank token.
	InvalidTokenValueError struct {
		Value TokenValue
	}

	// InvalidSSHConfigError collects the field errors of a Config.
	InvalidSSHConfigError struct {
		FieldErrors []error
	}
)

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// Validate rejects empty and whitespace-only addresses.
func (h HostAddress) Validate() error {
	if strings.TrimSpace(string(h)) == "" {
		return &InvalidHostAddressError{Value: h}
	}
	return nil
}

// String hides the token value.
func (t TokenValue) String() string {
	if t == "" {
		return ""
	}
	return "****"
}

// Validate rejects empty and whitespace-only tokens.
func (t TokenValue) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &InvalidTokenValueError{Value: t}
	}
	return nil
}

// Validate checks every field and reports all problems at once. An empty
// token is valid because New generates one.
func (c Config) Validate() error {
	var errs []error
	if err := c.Host.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidListenPort, c.Port))
	}
	if c.Token != "" {
		if err := c.Token.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidSSHConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }

// Error implements the error interface for InvalidTokenValueError.
func (e *InvalidTokenValueError) Error() string {
	return "invalid token value: must be non-blank"
}

// Unwrap returns ErrInvalidTokenValue for errors.Is() compatibility.
func (e *InvalidTokenValueError) Unwrap() error { return ErrInvalidTokenValue }

// Error implements the error interface for InvalidSSHConfigError.
func (e *InvalidSSHConfigError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidSSHConfig, errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidSSHConfig for errors.Is() compatibility.
func (e *InvalidSSHConfigError) Unwrap() error { return ErrInvalidSSHConfig }
