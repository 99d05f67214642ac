// Package logging builds the process-wide zerolog logger: console output on
// stderr, plus an optional rotated file sink.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects sinks and verbosity.
type Options struct {
	Level string // trace, debug, info, warn, error
	File  string // when set, logs are also written here, rotated
}

// New builds the root logger. Unknown levels fall back to info.
func New(opt Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opt.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var sink io.Writer = console
	if opt.File != "" {
		sink = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	return zerolog.New(sink).Level(level).With().Timestamp().Logger()
}
