// SPDX-License-Identifier: MPL-2.0

// Package logging builds the host's root logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrInvalidFormat is returned for an unknown log format.
var ErrInvalidFormat = errors.New("invalid log format")

// Format names accepted by Options.Format.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

// Options configures New.
type Options struct {
	// Level is a charmbracelet/log level name; empty means "info".
	Level string
	// Format is text, json or logfmt; empty means text.
	Format string
	// Prefix is shown before every message.
	Prefix string
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	formatter, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// ParseFormat maps a format name to a formatter.
func ParseFormat(name string) (log.Formatter, error) {
	switch strings.ToLower(name) {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("%w: %q (want text, json or logfmt)", ErrInvalidFormat, name)
	}
}

// InstallDefault routes the standard library's slog default through
// logger, so helper packages that log with slog share its output.
func InstallDefault(logger *log.Logger) {
	slog.SetDefault(slog.New(logger))
}
