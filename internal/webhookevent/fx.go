package webhookevent

import (
	"github.com/standhq/stand/internal/webhookevent/repository"
	webhookeventservice "github.com/standhq/stand/internal/webhookevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhookevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(webhookeventservice.NewService),
)
