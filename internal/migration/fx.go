package migration

import (
	"github.com/tutorlane/tutorbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// The SQL files target postgres; other dialects are only used in
		// tests, which migrate through gorm instead.
		if cfg.DBType != "postgres" {
			log.Warn("skipping migrations for non-postgres database",
				zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
