package utils

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds a logger that writes to stdout and a rotating file
// under cfg.LogPath. Every entry carries the app name and environment.
func InitLogger(cfg AppConfig) (*zap.Logger, error) {
	if cfg.LogPath != "" {
		if err := os.MkdirAll(cfg.LogPath, 0755); err != nil {
			return nil, err
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.CallerKey = "caller"
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	// JSON in production, console in debug
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.Debug {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.InfoLevel
	if cfg.Debug {
		level = zap.DebugLevel
	}

	name := cfg.Name
	if name == "" {
		name = "seat-reservation"
	}
	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogPath, name+".log"),
		MaxSize:    10, // MB
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, fileWriter, level),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(zap.String("app", name), zap.String("env", cfg.Env)),
	), nil
}
