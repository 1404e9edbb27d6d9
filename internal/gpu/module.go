package gpu

import (
	"context"

	"github.com/fxnlabs/cudabind/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a *Manager that is closed when the application stops.
var Module = fx.Module("gpu",
	fx.Provide(NewLifecycleManager),
)

// NewLifecycleManager builds a Manager and ties its Close to lc.
func NewLifecycleManager(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*Manager, error) {
	m, err := NewManager(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return m.Close() },
	})
	return m, nil
}
