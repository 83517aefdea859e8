// Package logging builds the process logger: colored console output plus an
// optional plain text log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/openmined/stageup/internal/utils"
)

const (
	LogFileName = "stageup.log"
	timeFormat  = "2006-01-02T15:04:05.000Z07:00"
)

type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Dir receives LogFileName when set.
	Dir string
	// Console defaults to os.Stderr.
	Console *os.File
}

// Setup creates the logger described by opts. The returned closer flushes
// and closes the log file, it is a no-op without one.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			NoColor:    !isatty.IsTerminal(console.Fd()),
		}),
	}

	var closer io.Closer = nopCloser{}
	if opts.Dir != "" {
		if err := utils.EnsureDir(opts.Dir); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(opts.Dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		lines := NewLineWriter(file)
		handlers = append(handlers, slog.NewTextHandler(lines, &slog.HandlerOptions{
			Level: level,
			// time is written by the line writer
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		}))
		closer = &fileCloser{lines: lines, file: file}
	}

	return slog.New(NewMultiHandler(handlers...)), closer, nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type fileCloser struct {
	lines *LineWriter
	file  *os.File
}

func (c *fileCloser) Close() error {
	flushErr := c.lines.Close()
	if err := c.file.Close(); err != nil {
		return err
	}
	return flushErr
}
