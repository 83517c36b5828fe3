package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON production logger shared by every binary.
func NewLogger() (*zap.SugaredLogger, error) {
	return build(zapcore.InfoLevel)
}

// NewDevelopment logs at debug level.
func NewDevelopment() (*zap.SugaredLogger, error) {
	return build(zapcore.DebugLevel)
}

// FromEnv picks NewDevelopment when DEBUG is set, NewLogger otherwise.
// The workers use it so per-event logs can be switched on in place.
func FromEnv() (*zap.SugaredLogger, error) {
	if os.Getenv("DEBUG") != "" {
		return NewDevelopment()
	}
	return NewLogger()
}

func build(level zapcore.Level) (*zap.SugaredLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("service", "wallet-ledger"), nil
}
