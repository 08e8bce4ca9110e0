package repository

import (
	"context"
	"time"

	"github.com/standhq/stand/internal/game/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindGame(ctx context.Context, db *gorm.DB, gameID string) (*domain.Game, error) {
	var item domain.Game
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_user_id, game_type, status, created_at, updated_at
		 FROM games
		 WHERE id = ?
		 LIMIT 1`,
		gameID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertGame(ctx context.Context, db *gorm.DB, game *domain.Game) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO games (id, owner_user_id, game_type, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		game.ID,
		game.OwnerUserID,
		game.GameType,
		game.Status,
		game.CreatedAt,
		game.UpdatedAt,
	).Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, gameID, gameType string) (*domain.TypeConfig, error) {
	var item domain.TypeConfig
	err := db.WithContext(ctx).Raw(
		`SELECT game_id, game_type, config, updated_at
		 FROM game_type_configs
		 WHERE game_id = ? AND game_type = ?
		 LIMIT 1`,
		gameID,
		gameType,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.GameID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertConfig(ctx context.Context, db *gorm.DB, cfg *domain.TypeConfig) (bool, error) {
	// The WHERE clause on the conflict branch rejects writes older than
	// the stored row without a read-modify-write race.
	res := db.WithContext(ctx).Exec(
		`INSERT INTO game_type_configs (game_id, game_type, config, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (game_id, game_type) DO UPDATE
		 SET config = excluded.config, updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= game_type_configs.updated_at`,
		cfg.GameID,
		cfg.GameType,
		cfg.Config,
		cfg.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) TouchGame(ctx context.Context, db *gorm.DB, gameID string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE games
		 SET updated_at = ?
		 WHERE id = ? AND updated_at < ?`,
		updatedAt,
		gameID,
		updatedAt,
	).Error
}
