package migration

import (
	"github.com/smallbiznis/estately/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates on startup when enabled. A failure is logged rather than
// returned so the process stays up and health reports the store state.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) {
		if !cfg.MigrateOnStart {
			return
		}
		log = log.Named("migration")
		if err := Run(conn); err != nil {
			log.Error("schema migration failed", zap.Error(err))
			return
		}
		log.Info("schema up to date")
	}),
)
