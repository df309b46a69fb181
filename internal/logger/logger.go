// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the leveled, structured logging used
// throughout this repository: a package-level slog.Logger selectable
// between text and JSON output, rotated to disk with
// gopkg.in/natefinch/lumberjack.v2 when a file path is configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/google/agentfs/internal/config"
)

// Custom levels beyond slog's default four: TRACE below DEBUG for
// per-call detail, OFF above everything to silence output entirely.
const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelOff   slog.Level = 100
)

type loggerFactory struct {
	writer io.Writer
	format string
	level  *slog.LevelVar
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.MessageKey:
				a.Key = "message"
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	case l < LevelOff:
		return "ERROR"
	default:
		return "OFF"
	}
}

var (
	defaultLevel         = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{writer: os.Stderr, format: "text", level: defaultLevel}
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, defaultLevel, ""))
)

// Init rebuilds the package-level logger from cfg: selects text or JSON
// output, sets the severity filter, and, if cfg.FilePath is set, routes
// output through a lumberjack.Logger for size-based rotation.
func Init(cfg config.Logging) error {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    512, // megabytes
			MaxBackups: 10,
			Compress:   true,
		}
	}

	level := new(slog.LevelVar)
	setLoggingLevel(string(cfg.Severity), level)

	defaultLoggerFactory = &loggerFactory{writer: w, format: cfg.Format, level: level}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, level, ""))
	return nil
}

// Logger returns the current package-level *slog.Logger, for components
// (such as fs.ServerConfig) that need a concrete slog.Logger rather than
// the Tracef/Debugf/... helpers.
func Logger() *slog.Logger { return defaultLogger }

// SetLogFormat switches the active logger between "text" and "json"
// without touching its destination or level.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer, defaultLoggerFactory.level, ""))
}

func setLoggingLevel(severity string, level *slog.LevelVar) {
	switch config.Severity(severity) {
	case config.Trace:
		level.Set(LevelTrace)
	case config.Debug:
		level.Set(LevelDebug)
	case config.Info:
		level.Set(LevelInfo)
	case config.Warning:
		level.Set(LevelWarn)
	case config.Error:
		level.Set(LevelError)
	case config.Off:
		level.Set(LevelOff)
	default:
		level.Set(LevelInfo)
	}
}

// Tracef logs at TRACE severity: per-call detail noisy enough to be off by
// default (e.g. every resolved path).
func Tracef(format string, args ...any) { logf(context.Background(), LevelTrace, format, args...) }

// Debugf logs at DEBUG severity.
func Debugf(format string, args ...any) { logf(context.Background(), LevelDebug, format, args...) }

// Infof logs at INFO severity.
func Infof(format string, args ...any) { logf(context.Background(), LevelInfo, format, args...) }

// Warnf logs at WARNING severity.
func Warnf(format string, args ...any) { logf(context.Background(), LevelWarn, format, args...) }

// Errorf logs at ERROR severity.
func Errorf(format string, args ...any) { logf(context.Background(), LevelError, format, args...) }

func logf(ctx context.Context, level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	defaultLogger.Log(ctx, level, msg)
}
