// Package logging builds the zap logger used across whisper. Logs go to a
// rotating file because the terminal belongs to the chat UI.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the active log file inside Options.Dir
const FileName = "whisper.log"

const logTimeFormat = "2006-01-02 15:04:05.000"

type Options struct {
	Level string
	Dir   string

	// Console also writes human-readable lines to stderr
	Console bool

	MaxSize    int // megabytes before rotation
	MaxAge     int // days to keep rotated files
	MaxBackups int
	Compress   bool
}

// ParseLevel maps a config string to a zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(logTimeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New creates a logger writing JSON lines to Dir/whisper.log. The returned
// closer flushes and closes the file.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	if opts.Dir == "" {
		opts.Dir = "log"
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = 10
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 7
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	level := ParseLevel(opts.Level)
	writer := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, FileName),
		MaxSize:    opts.MaxSize,
		MaxAge:     opts.MaxAge,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
		LocalTime:  true,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(writer), level),
	}
	if opts.Console {
		consoleCfg := encoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	return logger, closer{logger: logger, writer: writer}, nil
}

type closer struct {
	logger *zap.Logger
	writer *lumberjack.Logger
}

func (c closer) Close() error {
	_ = c.logger.Sync()
	return c.writer.Close()
}
