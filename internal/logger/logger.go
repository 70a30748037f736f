// Package logger builds the zerolog logger used by optsctl.
//
// Logs go to stderr so command output on stdout stays machine readable. When
// a log file is configured, entries are written there instead through a
// rotating lumberjack writer.
package logger

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// Config selects where and how much to log.
type Config struct {
	Role  string
	Level string
	File  string
	// MaxSizeMB caps a log file before it is rotated. Zero means 10.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep. Zero means 3.
	MaxBackups int
}

// New returns a logger for cfg. An unknown level falls back to warn.
func New(cfg Config) *Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit fallback writer, used when no log
// file is configured.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	var closer io.Closer
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
		}
		w = rotating
		closer = rotating
	}

	logger := zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Str("role", cfg.Role).
		Timestamp().
		Caller().
		Logger()
	return &Logger{Logger: logger, closer: closer}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a level name to a zerolog level. Empty or unknown names
// mean warn.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.WarnLevel
	}
	return level
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
