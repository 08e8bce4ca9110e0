package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownGame reports a social event referencing a game id that does
// not resolve. Redelivery will not fix it; it needs operator attention.
var ErrUnknownGame = errors.New("social event references unknown game")

var ErrInvalidEvent = errors.New("invalid social event")

// Event is a deduplicated social content update targeting one game
// type's config blob.
type Event struct {
	GameID     string
	GameType   string
	Cards      []map[string]any
	ReceivedAt time.Time
}

type Service interface {
	Apply(ctx context.Context, event Event) error
}
