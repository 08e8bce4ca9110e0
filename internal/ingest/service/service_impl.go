package service

import (
	"context"
	"errors"
	"net/http"

	billingdomain "github.com/standhq/stand/internal/billing/domain"
	"github.com/standhq/stand/internal/clock"
	"github.com/standhq/stand/internal/ingest/adapters"
	"github.com/standhq/stand/internal/ingest/domain"
	obsmetrics "github.com/standhq/stand/internal/observability/metrics"
	socialdomain "github.com/standhq/stand/internal/social/domain"
	webhookeventdomain "github.com/standhq/stand/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Registry   *adapters.Registry
	DedupSvc   webhookeventdomain.Service
	BillingSvc billingdomain.Service
	SocialSvc  socialdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	registry   *adapters.Registry
	dedupSvc   webhookeventdomain.Service
	billingSvc billingdomain.Service
	socialSvc  socialdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("ingest.service"),
		clock:      p.Clock,
		registry:   p.Registry,
		dedupSvc:   p.DedupSvc,
		billingSvc: p.BillingSvc,
		socialSvc:  p.SocialSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// ProcessWebhook verifies the delivery, then runs each extracted event
// through dedup and the matching reconciler. Verification failures
// leave no trace in the ledger.
func (s *Service) ProcessWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		s.recordEvent(ctx, provider, "signature_rejected")
		return err
	}

	events, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.recordEvent(ctx, provider, "ignored")
			return nil
		}
		return err
	}

	for _, event := range events {
		if err := s.processEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) processEvent(ctx context.Context, event domain.Event) error {
	result, err := s.dedupSvc.TryBegin(ctx, event.Provider, event.ProviderEventID, event.Kind)
	if err != nil {
		return err
	}

	switch result {
	case webhookeventdomain.AlreadyApplied:
		s.log.Info("skipping already applied event",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		s.recordEvent(ctx, event.Provider, "duplicate")
		return nil
	case webhookeventdomain.InFlight:
		s.recordEvent(ctx, event.Provider, "in_flight")
		return domain.ErrEventInFlight
	case webhookeventdomain.Proceed, webhookeventdomain.AlreadyFailed:
	}

	if err := s.dispatch(ctx, event); err != nil {
		if markErr := s.dedupSvc.MarkFailed(ctx, event.Provider, event.ProviderEventID, err.Error()); markErr != nil {
			s.log.Error("failed to record event failure",
				zap.String("provider", event.Provider),
				zap.String("provider_event_id", event.ProviderEventID),
				zap.Error(markErr),
			)
		}
		s.recordEvent(ctx, event.Provider, "failed")
		return err
	}

	if err := s.dedupSvc.MarkApplied(ctx, event.Provider, event.ProviderEventID); err != nil {
		return err
	}
	s.recordEvent(ctx, event.Provider, "applied")
	return nil
}

func (s *Service) dispatch(ctx context.Context, event domain.Event) error {
	switch {
	case event.Billing != nil:
		return s.billingSvc.Apply(ctx, *event.Billing)
	case event.Social != nil:
		social := *event.Social
		social.ReceivedAt = s.clock.Now()
		return s.socialSvc.Apply(ctx, social)
	default:
		return domain.ErrInvalidEvent
	}
}

func (s *Service) recordEvent(ctx context.Context, provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, outcome)
	}
}
