package service

import (
	"context"
	"errors"
	"strings"

	"github.com/standhq/stand/internal/cache"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	"github.com/standhq/stand/internal/game/typeconfig"
	"github.com/standhq/stand/internal/social/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GameSvc  gamedomain.Service
	Resolver cache.GameResolverCache
}

type Service struct {
	log      *zap.Logger
	gameSvc  gamedomain.Service
	resolver cache.GameResolverCache
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("social.service"),
		gameSvc:  p.GameSvc,
		resolver: p.Resolver,
	}
}

// Apply writes the event's cards into the target game type's config
// blob, stamped at event receipt time so stale redeliveries lose to
// fresher writes.
func (s *Service) Apply(ctx context.Context, event domain.Event) error {
	event.GameID = strings.TrimSpace(event.GameID)
	if event.GameID == "" || event.ReceivedAt.IsZero() {
		return domain.ErrInvalidEvent
	}

	if err := s.resolveGame(ctx, event.GameID); err != nil {
		return err
	}

	blob := typeconfig.Blob{"cards": cardsValue(event.Cards)}
	_, err := s.gameSvc.SetConfigAt(ctx, event.GameID, event.GameType, blob, event.ReceivedAt)
	if errors.Is(err, gamedomain.ErrStaleWrite) {
		// A fresher write is already stored. The event is consumed.
		s.log.Info("social event superseded by newer config",
			zap.String("game_id", event.GameID),
			zap.String("game_type", event.GameType),
		)
		return nil
	}
	return err
}

func (s *Service) resolveGame(ctx context.Context, gameID string) error {
	if _, ok := s.resolver.GetGame(gameID); ok {
		return nil
	}

	game, err := s.gameSvc.GetGame(ctx, gameID)
	if errors.Is(err, gamedomain.ErrGameNotFound) {
		return domain.ErrUnknownGame
	}
	if err != nil {
		return err
	}

	s.resolver.SetGame(gameID, game)
	return nil
}

func cardsValue(cards []map[string]any) []any {
	out := make([]any, 0, len(cards))
	for _, card := range cards {
		out = append(out, card)
	}
	return out
}
