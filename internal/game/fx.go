package game

import (
	"github.com/standhq/stand/internal/game/repository"
	gameservice "github.com/standhq/stand/internal/game/service"
	"go.uber.org/fx"
)

var Module = fx.Module("game.service",
	fx.Provide(repository.Provide),
	fx.Provide(gameservice.NewService),
)
