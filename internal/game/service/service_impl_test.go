package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/standhq/stand/internal/clock"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	gamerepo "github.com/standhq/stand/internal/game/repository"
	gameservice "github.com/standhq/stand/internal/game/service"
	"github.com/standhq/stand/internal/game/typeconfig"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE games (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL DEFAULT '',
			game_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE game_type_configs (
			game_id TEXT NOT NULL,
			game_type TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (game_id, game_type)
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, clk clock.Clock) gamedomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(20)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return gameservice.NewService(gameservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  gamerepo.Provide(),
	})
}

func TestSetConfigIsolatedPerType(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	game, err := svc.CreateGame(ctx, gamedomain.CreateGameRequest{
		OwnerUserID: "user_1",
		GameType:    "INFOCARDS",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	if _, err := svc.SetConfig(ctx, game.ID, "INFOCARDS", typeconfig.Blob{
		"cards": []any{map[string]any{"q": "2+2", "a": "4"}},
	}); err != nil {
		t.Fatalf("set infocards: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := svc.SetConfig(ctx, game.ID, "LEADERBOARD", typeconfig.Blob{
		"limit": float64(10),
	}); err != nil {
		t.Fatalf("set leaderboard: %v", err)
	}

	infocards, err := svc.GetConfig(ctx, game.ID, "INFOCARDS")
	if err != nil {
		t.Fatalf("get infocards: %v", err)
	}
	cards, ok := infocards["cards"].([]any)
	if !ok || len(cards) != 1 {
		t.Fatalf("expected one card, got %#v", infocards["cards"])
	}
	card, ok := cards[0].(map[string]any)
	if !ok || card["q"] != "2+2" || card["a"] != "4" {
		t.Fatalf("unexpected card: %#v", cards[0])
	}

	leaderboard, err := svc.GetConfig(ctx, game.ID, "LEADERBOARD")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if _, found := leaderboard["cards"]; found {
		t.Fatalf("leaderboard blob leaked infocards data: %#v", leaderboard)
	}
}

func TestSetConfigRejectsStaleWrite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	game, err := svc.CreateGame(ctx, gamedomain.CreateGameRequest{
		OwnerUserID: "user_1",
		GameType:    "INFOCARDS",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	newer := clk.Now().Add(time.Minute)
	if _, err := svc.SetConfigAt(ctx, game.ID, "INFOCARDS", typeconfig.Blob{"v": "new"}, newer); err != nil {
		t.Fatalf("newer write: %v", err)
	}

	_, err = svc.SetConfigAt(ctx, game.ID, "INFOCARDS", typeconfig.Blob{"v": "old"}, clk.Now())
	if !errors.Is(err, gamedomain.ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}

	blob, err := svc.GetConfig(ctx, game.ID, "INFOCARDS")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if blob["v"] != "new" {
		t.Fatalf("stale write clobbered stored blob: %#v", blob)
	}

	// Replaying the winning write with the same timestamp is accepted.
	if _, err := svc.SetConfigAt(ctx, game.ID, "INFOCARDS", typeconfig.Blob{"v": "new"}, newer); err != nil {
		t.Fatalf("replay of latest write: %v", err)
	}
}

func TestGetConfigUnknownGame(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.NewSystemClock())

	_, err := svc.GetConfig(ctx, "missing", "INFOCARDS")
	if !errors.Is(err, gamedomain.ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestGetConfigEmptyForExistingGame(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.NewSystemClock())

	game, err := svc.CreateGame(ctx, gamedomain.CreateGameRequest{
		OwnerUserID: "user_1",
		GameType:    "INFOCARDS",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	blob, err := svc.GetConfig(ctx, game.ID, "INFOCARDS")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if len(blob) != 0 {
		t.Fatalf("expected empty blob, got %#v", blob)
	}
}

func TestNormalizeGameType(t *testing.T) {
	normalized, err := typeconfig.NormalizeGameType("  infocards ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized != "INFOCARDS" {
		t.Fatalf("expected INFOCARDS, got %s", normalized)
	}

	if _, err := typeconfig.NormalizeGameType("info cards"); err == nil {
		t.Fatalf("expected invalid game type error")
	}
}
