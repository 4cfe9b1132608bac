package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap.Logger configured based on the application environment.
func New(env string) *zap.Logger {
	cfg := config(env)
	logr, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logr.With(zap.String("service", "muvico-api"))
}

func config(env string) zap.Config {
	switch env {
	case "production", "staging":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(env))
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	default:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(env))
		return cfg
	}
}

func parseLevel(env string) zapcore.Level {
	switch env {
	case "production", "staging":
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
