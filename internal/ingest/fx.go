package ingest

import (
	"github.com/standhq/stand/internal/config"
	"github.com/standhq/stand/internal/ingest/adapters"
	"github.com/standhq/stand/internal/ingest/adapters/instagram"
	"github.com/standhq/stand/internal/ingest/adapters/stripe"
	"github.com/standhq/stand/internal/ingest/domain"
	ingestservice "github.com/standhq/stand/internal/ingest/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ingest.service",
	fx.Provide(newRegistry),
	fx.Provide(ingestservice.NewService),
)

// newRegistry registers only the providers whose secrets are
// configured. Deliveries for the rest fail with a 404 instead of
// passing unverified.
func newRegistry(cfg config.Config, log *zap.Logger) (*adapters.Registry, error) {
	var registered []domain.Adapter

	if cfg.StripeWebhookSecret != "" {
		stripeAdapter, err := stripe.New(cfg.StripeWebhookSecret)
		if err != nil {
			return nil, err
		}
		registered = append(registered, stripeAdapter)
	} else {
		log.Warn("stripe webhook secret not configured, provider disabled")
	}

	if cfg.InstagramAppSecret != "" {
		instagramAdapter, err := instagram.New(cfg.InstagramAppSecret)
		if err != nil {
			return nil, err
		}
		registered = append(registered, instagramAdapter)
	} else {
		log.Warn("instagram app secret not configured, provider disabled")
	}

	return adapters.NewRegistry(registered...), nil
}
