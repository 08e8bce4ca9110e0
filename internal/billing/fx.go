package billing

import (
	"github.com/standhq/stand/internal/billing/repository"
	billingservice "github.com/standhq/stand/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(billingservice.NewService),
)
