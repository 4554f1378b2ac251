// Package logging builds the process-wide zap logger from the logging
// section of the configuration file.
//
// When file logging is enabled, output goes to <directory>/blksocks.log and
// is rotated by size, keeping a bounded number of old files. When disabled,
// a no-op logger is returned so callers never need a nil check.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/blksocks/blksocks/internal/config"
)

const fileName = "blksocks.log"

// New constructs a logger per cfg. verbose lowers the level to debug.
func New(cfg config.Logging, verbose bool) *zap.Logger {
	if !cfg.Enabled {
		return zap.NewNop()
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	var sink zapcore.WriteSyncer
	if cfg.Directory != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(cfg.Directory, fileName),
			MaxSize:    cfg.FileSizeLimitMB,
			MaxBackups: cfg.RotateCount,
		})
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), sink, level)
	return zap.New(core)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeName:  zapcore.FullNameEncoder,
		LineEnding:  zapcore.DefaultLineEnding,
	}
}
