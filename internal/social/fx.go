package social

import (
	socialservice "github.com/standhq/stand/internal/social/service"
	"go.uber.org/fx"
)

var Module = fx.Module("social.service",
	fx.Provide(socialservice.NewService),
)
