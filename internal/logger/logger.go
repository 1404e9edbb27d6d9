package logger

import (
	"github.com/fxnlabs/cudabind/internal/config"
	"go.uber.org/zap"
)

func New(verbosity string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	return config.Build()
}

// FromConfig builds the logger described by cfg.Logger.
func FromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logger.Verbosity)
}
