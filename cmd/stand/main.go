package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/standhq/stand/internal/billing"
	"github.com/standhq/stand/internal/cache"
	"github.com/standhq/stand/internal/clock"
	"github.com/standhq/stand/internal/config"
	"github.com/standhq/stand/internal/game"
	"github.com/standhq/stand/internal/ingest"
	"github.com/standhq/stand/internal/migration"
	"github.com/standhq/stand/internal/observability"
	"github.com/standhq/stand/internal/ratelimit"
	"github.com/standhq/stand/internal/server"
	"github.com/standhq/stand/internal/social"
	"github.com/standhq/stand/internal/webhookevent"
	"github.com/standhq/stand/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,

		game.Module,
		webhookevent.Module,
		billing.Module,
		social.Module,
		ingest.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
