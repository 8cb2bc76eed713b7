package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"folio/pkg/config"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below debug and is used for full request/response dumps.
const LevelTrace = slog.Level(-8)

const defaultLogFile = "folio.log"
const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Options tweak Init beyond what the config file holds.
type Options struct {
	// Stderr mirrors records to stderr as text (the --verbose flag).
	Stderr io.Writer
}

// Init configures slog to write structured logs to a rotated file.
func Init(cfg config.Config, opts Options) (*slog.Logger, error) {
	level := ParseLevel(cfg.LogLevel)
	handlerOptions := &slog.HandlerOptions{Level: level}

	var stderrHandler slog.Handler
	if opts.Stderr != nil {
		stderrHandler = slog.NewTextHandler(opts.Stderr, handlerOptions)
	}

	logPath := LogPath(cfg)
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		fallback := stderrHandler
		if fallback == nil {
			fallback = newHandler(cfg.LogFormat, io.Discard, handlerOptions)
		}
		logger := slog.New(fallback)
		slog.SetDefault(logger)
		return logger, err
	}

	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	var handler slog.Handler = newHandler(cfg.LogFormat, writer, handlerOptions)
	if stderrHandler != nil {
		handler = slogmulti.Fanout(handler, stderrHandler)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// LogPath reports the file Init writes to: log_file, or the default
// under the home directory.
func LogPath(cfg config.Config) string {
	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		return path
	}
	return defaultLogPath()
}

func defaultLogPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(homeDir) == "" {
		return filepath.Join(".folio", "logs", defaultLogFile)
	}
	return filepath.Join(homeDir, ".folio", "logs", defaultLogFile)
}

// ParseLevel maps a config string to a slog level; unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}
