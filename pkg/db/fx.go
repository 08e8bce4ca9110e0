package db

import (
	"context"

	"github.com/standhq/stand/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects gorm using the configured dialect and registers a
// lifecycle hook closing the pool on shutdown.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewZapLogger(log),
	})
	if err != nil {
		return nil, err
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
