package seed

import (
	"context"

	"github.com/smallbiznis/estately/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(seedOnStart),
)

func seedOnStart(lc fx.Lifecycle, cfg config.Config, s *Seeder, log *zap.Logger) {
	if !cfg.SeedOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Run(ctx); err != nil {
				log.Warn("seed on start failed", zap.Error(err))
			}
			return nil
		},
	})
}
