package repository

import (
	"context"

	"github.com/standhq/stand/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindState(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.State, error) {
	var item domain.State
	err := db.WithContext(ctx).Raw(
		`SELECT subscription_id, status, plan_code, active_until,
			last_event_sequence, updated_at
		 FROM billing_states
		 WHERE subscription_id = ?
		 LIMIT 1`,
		subscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.SubscriptionID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpsertState(ctx context.Context, db *gorm.DB, state *domain.State) (bool, error) {
	// Sequence monotonicity is enforced at write time so concurrent
	// out-of-order applies converge without locking.
	res := db.WithContext(ctx).Exec(
		`INSERT INTO billing_states (
			subscription_id, status, plan_code, active_until,
			last_event_sequence, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id) DO UPDATE
		SET status = excluded.status,
			plan_code = excluded.plan_code,
			active_until = excluded.active_until,
			last_event_sequence = excluded.last_event_sequence,
			updated_at = excluded.updated_at
		WHERE excluded.last_event_sequence > billing_states.last_event_sequence`,
		state.SubscriptionID,
		state.Status,
		state.PlanCode,
		state.ActiveUntil,
		state.LastEventSequence,
		state.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
