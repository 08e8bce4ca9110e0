package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/standhq/stand/internal/clock"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	"github.com/standhq/stand/internal/game/typeconfig"
	obsmetrics "github.com/standhq/stand/internal/observability/metrics"
	"github.com/standhq/stand/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       gamedomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       gamedomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) gamedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("game.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateGame(ctx context.Context, req gamedomain.CreateGameRequest) (*gamedomain.Game, error) {
	gameType, err := typeconfig.NormalizeGameType(req.GameType)
	if err != nil {
		return nil, err
	}
	raw, err := typeconfig.Encode(req.Config)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	game := &gamedomain.Game{
		ID:          s.genID.Generate().String(),
		OwnerUserID: strings.TrimSpace(req.OwnerUserID),
		GameType:    gameType,
		Status:      gamedomain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertGame(ctx, tx, game); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return gamedomain.ErrGameExists
			}
			return err
		}
		_, err := s.repo.UpsertConfig(ctx, tx, &gamedomain.TypeConfig{
			GameID:    game.ID,
			GameType:  gameType,
			Config:    raw,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("game created",
		zap.String("game_id", game.ID),
		zap.String("game_type", game.GameType),
	)
	return game, nil
}

func (s *Service) GetGame(ctx context.Context, gameID string) (*gamedomain.Game, error) {
	game, err := s.repo.FindGame(ctx, s.db, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, gamedomain.ErrGameNotFound
	}
	return game, nil
}

// GetConfig returns the stored blob for one game type. A game that
// exists but has no row for the type yields an empty object.
func (s *Service) GetConfig(ctx context.Context, gameID, gameType string) (typeconfig.Blob, error) {
	gameType, err := typeconfig.NormalizeGameType(gameType)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, gameID, gameType)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return typeconfig.Blob{}, nil
	}
	return typeconfig.Decode(cfg.Config)
}

func (s *Service) SetConfig(ctx context.Context, gameID, gameType string, blob typeconfig.Blob) (*gamedomain.TypeConfig, error) {
	return s.SetConfigAt(ctx, gameID, gameType, blob, s.clock.Now())
}

// SetConfigAt writes one game type's blob stamped at updatedAt. Writes
// carrying a timestamp older than the stored row are rejected with
// ErrStaleWrite; equal timestamps win so replays of the latest write
// stay idempotent.
func (s *Service) SetConfigAt(ctx context.Context, gameID, gameType string, blob typeconfig.Blob, updatedAt time.Time) (*gamedomain.TypeConfig, error) {
	gameType, err := typeconfig.NormalizeGameType(gameType)
	if err != nil {
		return nil, err
	}
	raw, err := typeconfig.Encode(blob)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	cfg := &gamedomain.TypeConfig{
		GameID:    gameID,
		GameType:  gameType,
		Config:    raw,
		UpdatedAt: updatedAt.UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.UpsertConfig(ctx, tx, cfg)
		if err != nil {
			return err
		}
		if !applied {
			return gamedomain.ErrStaleWrite
		}
		return s.repo.TouchGame(ctx, tx, gameID, cfg.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordConfigWrite(ctx, gameType)
	}
	return cfg, nil
}
