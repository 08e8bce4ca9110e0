package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	OutcomePending = "pending"
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
)

var (
	// ErrInvalidTransition reports a MarkOutcome call against a record
	// that is not pending. It signals a bug in pipeline sequencing, not
	// a recoverable condition.
	ErrInvalidTransition = errors.New("webhook event outcome transition is invalid")
	ErrInvalidEvent      = errors.New("invalid webhook event")
)

// BeginResult tells the caller who owns processing of an event id.
type BeginResult int

const (
	// Proceed: this caller claimed the id and must run side effects.
	Proceed BeginResult = iota
	// AlreadyApplied: a previous delivery completed. Skip all side
	// effects and acknowledge.
	AlreadyApplied
	// AlreadyFailed: a previous delivery failed and this caller
	// re-claimed the id for a retry. Side effects must run again.
	AlreadyFailed
	// InFlight: another delivery holds the pending claim right now.
	InFlight
)

func (r BeginResult) String() string {
	switch r {
	case Proceed:
		return "proceed"
	case AlreadyApplied:
		return "already_applied"
	case AlreadyFailed:
		return "already_failed"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Record is one row of the idempotency ledger. Identity is
// (provider, provider_event_id); effectful processing runs at most
// once per identity even under redelivery.
type Record struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	Provider        string     `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string     `json:"provider_event_id" gorm:"type:text;not null"`
	Kind            string     `json:"kind" gorm:"type:text;not null"`
	Outcome         string     `json:"outcome" gorm:"type:text;not null"`
	FailureReason   string     `json:"failure_reason" gorm:"type:text;not null"`
	ReceivedAt      time.Time  `json:"received_at" gorm:"not null"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

func (Record) TableName() string { return "webhook_events" }

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*Record, error)
	// InsertPending conditionally creates the pending row. Returns
	// false when the identity already exists.
	InsertPending(ctx context.Context, db *gorm.DB, record *Record) (bool, error)
	// ReclaimFailed atomically flips failed back to pending so exactly
	// one retrying delivery wins. Returns false if the row was not in
	// the failed outcome.
	ReclaimFailed(ctx context.Context, db *gorm.DB, provider, providerEventID string, receivedAt time.Time) (bool, error)
	// MarkOutcome transitions pending to a terminal outcome. Returns
	// false if the row was not pending.
	MarkOutcome(ctx context.Context, db *gorm.DB, provider, providerEventID, outcome, failureReason string, resolvedAt time.Time) (bool, error)
}

type Service interface {
	TryBegin(ctx context.Context, provider, providerEventID, kind string) (BeginResult, error)
	MarkApplied(ctx context.Context, provider, providerEventID string) error
	MarkFailed(ctx context.Context, provider, providerEventID, reason string) error
	Get(ctx context.Context, provider, providerEventID string) (*Record, error)
}
