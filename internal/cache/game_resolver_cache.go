package cache

import (
	"strings"
	"time"

	gamedomain "github.com/standhq/stand/internal/game/domain"
)

const defaultGameTTL = 5 * time.Minute

// GameResolverCache stores hot-path game header lookups for social
// event reconciliation. Entries are short-lived; a miss always falls
// through to the store.
type GameResolverCache interface {
	GetGame(gameID string) (*gamedomain.Game, bool)
	SetGame(gameID string, game *gamedomain.Game)
	Invalidate(gameID string)
}

type gameResolverCache struct {
	games   Cache[string, *gamedomain.Game]
	gameTTL time.Duration
}

func NewGameResolverCache() GameResolverCache {
	return &gameResolverCache{
		games:   NewTTLCache[string, *gamedomain.Game](),
		gameTTL: defaultGameTTL,
	}
}

func (c *gameResolverCache) GetGame(gameID string) (*gamedomain.Game, bool) {
	key := cacheKey(gameID)
	if key == "" {
		return nil, false
	}
	return c.games.Get(key)
}

func (c *gameResolverCache) SetGame(gameID string, game *gamedomain.Game) {
	if game == nil {
		return
	}
	key := cacheKey(gameID)
	if key == "" {
		return
	}
	c.games.Set(key, game, c.gameTTL)
}

func (c *gameResolverCache) Invalidate(gameID string) {
	c.games.Delete(cacheKey(gameID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
