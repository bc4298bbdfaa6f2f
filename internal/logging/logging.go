// Package logging provides structured logging for archstatus.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. Library packages take a *zap.Logger
// explicitly; only the CLI reads this.
var Logger = zap.NewNop()

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the output format (console, json).
	Format string `yaml:"format"`

	// Output is the destination (stdout, stderr, or a file path).
	Output string `yaml:"output"`

	// Development enables caller stack traces on errors.
	Development bool `yaml:"development"`
}

// DefaultConfig returns console logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// New builds a logger from cfg. An unparsable level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	var ws zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stderr":
		ws = zapcore.AddSync(os.Stderr)
	case "stdout":
		ws = zapcore.AddSync(os.Stdout)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		ws = zapcore.AddSync(f)
	}
	return newWithSyncer(cfg, ws), nil
}

// NewWriter builds a logger writing to w, used by tests and by callers that
// capture output.
func NewWriter(cfg Config, w io.Writer) *zap.Logger {
	return newWithSyncer(cfg, zapcore.AddSync(w))
}

func newWithSyncer(cfg Config, ws zapcore.WriteSyncer) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, ws, level)
	if cfg.Development {
		return zap.New(core, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, zap.AddCaller())
}

// Initialize replaces the process-wide Logger.
func Initialize(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// Named returns a child of the process-wide logger scoped to component.
func Named(component string) *zap.Logger {
	return Logger.Named(component)
}

// Sync flushes buffered entries.
func Sync() {
	_ = Logger.Sync()
}
