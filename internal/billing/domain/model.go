package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	StatusTrial    = "trial"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

const (
	KindPaymentSucceeded     = "payment_succeeded"
	KindPaymentFailed        = "payment_failed"
	KindSubscriptionCanceled = "subscription_canceled"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidEvent         = errors.New("invalid billing event")
)

// State is the per-subscription billing record. LastEventSequence only
// moves forward; events at or below it are no-ops regardless of kind.
type State struct {
	SubscriptionID    string     `json:"subscription_id" gorm:"primaryKey"`
	Status            string     `json:"status" gorm:"type:text;not null"`
	PlanCode          string     `json:"plan_code" gorm:"type:text;not null"`
	ActiveUntil       *time.Time `json:"active_until"`
	LastEventSequence int64      `json:"last_event_sequence" gorm:"not null"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"not null"`
}

func (State) TableName() string { return "billing_states" }

// Event is a provider payment event normalized by an adapter. Sequence
// is the provider-assigned ordering token for the subscription.
type Event struct {
	SubscriptionID string
	Sequence       int64
	Kind           string
	OccurredAt     time.Time
}

type Repository interface {
	FindState(ctx context.Context, db *gorm.DB, subscriptionID string) (*State, error)
	// UpsertState persists the state unless a row with an equal or
	// higher sequence already exists. Returns false when superseded.
	UpsertState(ctx context.Context, db *gorm.DB, state *State) (bool, error)
}

type Service interface {
	Apply(ctx context.Context, event Event) error
	GetState(ctx context.Context, subscriptionID string) (*State, error)
}
