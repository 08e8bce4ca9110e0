package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/standhq/stand/internal/clock"
	"github.com/standhq/stand/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("webhookevent.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// TryBegin claims processing of one event id. The conditional insert is
// the only synchronization primitive: concurrent deliveries of the same
// id race on it and exactly one observes Proceed.
func (s *Service) TryBegin(ctx context.Context, provider, providerEventID, kind string) (domain.BeginResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerEventID = strings.TrimSpace(providerEventID)
	if provider == "" || providerEventID == "" {
		return 0, domain.ErrInvalidEvent
	}

	now := s.clock.Now()
	inserted, err := s.repo.InsertPending(ctx, s.db, &domain.Record{
		ID:              s.genID.Generate().String(),
		Provider:        provider,
		ProviderEventID: providerEventID,
		Kind:            kind,
		ReceivedAt:      now,
	})
	if err != nil {
		return 0, err
	}
	if inserted {
		return domain.Proceed, nil
	}

	existing, err := s.repo.Find(ctx, s.db, provider, providerEventID)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		// Row vanished between insert and read. Treat as contended and
		// let redelivery sort it out.
		return domain.InFlight, nil
	}

	switch existing.Outcome {
	case domain.OutcomeApplied:
		return domain.AlreadyApplied, nil
	case domain.OutcomeFailed:
		reclaimed, err := s.repo.ReclaimFailed(ctx, s.db, provider, providerEventID, now)
		if err != nil {
			return 0, err
		}
		if reclaimed {
			s.log.Info("retrying failed webhook event",
				zap.String("provider", provider),
				zap.String("provider_event_id", providerEventID),
			)
			return domain.AlreadyFailed, nil
		}
		// Another delivery re-claimed it first.
		return domain.InFlight, nil
	default:
		return domain.InFlight, nil
	}
}

func (s *Service) MarkApplied(ctx context.Context, provider, providerEventID string) error {
	return s.markOutcome(ctx, provider, providerEventID, domain.OutcomeApplied, "")
}

func (s *Service) MarkFailed(ctx context.Context, provider, providerEventID, reason string) error {
	return s.markOutcome(ctx, provider, providerEventID, domain.OutcomeFailed, reason)
}

func (s *Service) markOutcome(ctx context.Context, provider, providerEventID, outcome, reason string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	moved, err := s.repo.MarkOutcome(ctx, s.db, provider, providerEventID, outcome, reason, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) Get(ctx context.Context, provider, providerEventID string) (*domain.Record, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	return s.repo.Find(ctx, s.db, provider, providerEventID)
}
