package service

import (
	"context"
	"strings"
	"time"

	"github.com/standhq/stand/internal/billing/domain"
	"github.com/standhq/stand/internal/clock"
	"github.com/standhq/stand/internal/config"
	obsmetrics "github.com/standhq/stand/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Plans      *config.PlanConfigHolder
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	plans      *config.PlanConfigHolder
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		clock:      p.Clock,
		plans:      p.Plans,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Apply folds one payment event into the subscription's billing state.
// Events at or below the stored sequence are no-ops, so redeliveries
// and out-of-order arrivals converge to the same final state.
func (s *Service) Apply(ctx context.Context, event domain.Event) error {
	event.SubscriptionID = strings.TrimSpace(event.SubscriptionID)
	if event.SubscriptionID == "" || event.Sequence <= 0 {
		return domain.ErrInvalidEvent
	}

	switch event.Kind {
	case domain.KindPaymentSucceeded, domain.KindPaymentFailed, domain.KindSubscriptionCanceled:
	default:
		// Forward compatibility: unknown kinds are ignored without
		// advancing the sequence.
		s.log.Warn("ignoring unknown billing event kind",
			zap.String("subscription_id", event.SubscriptionID),
			zap.String("kind", event.Kind),
		)
		return nil
	}

	current, err := s.repo.FindState(ctx, s.db, event.SubscriptionID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &domain.State{
			SubscriptionID: event.SubscriptionID,
			Status:         domain.StatusTrial,
		}
	}
	if event.Sequence <= current.LastEventSequence {
		return nil
	}

	next := s.transition(current, event)
	applied, err := s.repo.UpsertState(ctx, s.db, next)
	if err != nil {
		return err
	}
	if !applied {
		// A concurrent apply advanced the sequence past this event.
		return nil
	}

	s.log.Info("billing state advanced",
		zap.String("subscription_id", event.SubscriptionID),
		zap.String("kind", event.Kind),
		zap.String("status", next.Status),
		zap.Int64("sequence", event.Sequence),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordBillingTransition(ctx, event.Kind, next.Status)
	}
	return nil
}

// transition computes the successor state. Every kind maps to the same
// status regardless of the current one, so applies commute under the
// sequence guard and out-of-order arrivals converge.
func (s *Service) transition(current *domain.State, event domain.Event) *domain.State {
	next := *current
	next.LastEventSequence = event.Sequence
	next.UpdatedAt = s.clock.Now()

	switch event.Kind {
	case domain.KindPaymentSucceeded:
		plan := s.plans.Get()
		next.Status = domain.StatusActive
		next.PlanCode = plan.Code
		next.ActiveUntil = extendActiveUntil(current.ActiveUntil, s.clock.Now(), time.Duration(plan.DurationHours)*time.Hour)
	case domain.KindPaymentFailed:
		next.Status = domain.StatusPastDue
	case domain.KindSubscriptionCanceled:
		next.Status = domain.StatusCanceled
	}
	return &next
}

// extendActiveUntil adds the plan window to whichever is later, now or
// the current expiry, so back-to-back payments stack instead of
// truncating remaining time.
func extendActiveUntil(current *time.Time, now time.Time, window time.Duration) *time.Time {
	base := now
	if current != nil && current.After(base) {
		base = *current
	}
	extended := base.Add(window)
	return &extended
}

func (s *Service) GetState(ctx context.Context, subscriptionID string) (*domain.State, error) {
	state, err := s.repo.FindState(ctx, s.db, strings.TrimSpace(subscriptionID))
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return state, nil
}
