package domain

import (
	"context"
	"errors"
	"time"

	"github.com/standhq/stand/internal/game/typeconfig"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
	ErrStaleWrite   = errors.New("config write is older than stored version")
	ErrInvalidGame  = errors.New("invalid game")
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Game is the record header. GameType is immutable after creation and
// names the authoritative entry among the record's type configs; rows
// for other type names are kept but inactive.
type Game struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	OwnerUserID string    `json:"owner_user_id" gorm:"type:text;not null"`
	GameType    string    `json:"game_type" gorm:"type:text;not null"`
	Status      string    `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (Game) TableName() string { return "games" }

// TypeConfig is one per-type configuration slice of a game. A game owns
// at most one row per game type.
type TypeConfig struct {
	GameID    string         `json:"game_id" gorm:"primaryKey"`
	GameType  string         `json:"game_type" gorm:"primaryKey"`
	Config    datatypes.JSON `json:"config" gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (TypeConfig) TableName() string { return "game_type_configs" }

type Repository interface {
	FindGame(ctx context.Context, db *gorm.DB, gameID string) (*Game, error)
	InsertGame(ctx context.Context, db *gorm.DB, game *Game) error
	FindConfig(ctx context.Context, db *gorm.DB, gameID, gameType string) (*TypeConfig, error)
	// UpsertConfig writes the row unless a strictly newer version is
	// already stored. Returns false when the write was rejected as stale.
	UpsertConfig(ctx context.Context, db *gorm.DB, cfg *TypeConfig) (bool, error)
	TouchGame(ctx context.Context, db *gorm.DB, gameID string, updatedAt time.Time) error
}

// CreateGameRequest creates the header plus the initial config row for
// the record's own game type in one transaction.
type CreateGameRequest struct {
	OwnerUserID string          `json:"owner_user_id"`
	GameType    string          `json:"game_type"`
	Config      typeconfig.Blob `json:"config"`
}

type Service interface {
	CreateGame(ctx context.Context, req CreateGameRequest) (*Game, error)
	GetGame(ctx context.Context, gameID string) (*Game, error)
	GetConfig(ctx context.Context, gameID, gameType string) (typeconfig.Blob, error)
	SetConfig(ctx context.Context, gameID, gameType string, blob typeconfig.Blob) (*TypeConfig, error)
	SetConfigAt(ctx context.Context, gameID, gameType string, blob typeconfig.Blob, updatedAt time.Time) (*TypeConfig, error)
}
