package repository

import (
	"context"
	"time"

	"github.com/standhq/stand/internal/webhookevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.Record, error) {
	var item domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, kind, outcome, failure_reason,
			received_at, resolved_at
		 FROM webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertPending(ctx context.Context, db *gorm.DB, record *domain.Record) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider, provider_event_id, kind, outcome, failure_reason, received_at
		) VALUES (?, ?, ?, ?, ?, '', ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.ProviderEventID,
		record.Kind,
		domain.OutcomePending,
		record.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ReclaimFailed(ctx context.Context, db *gorm.DB, provider, providerEventID string, receivedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET outcome = ?, failure_reason = '', received_at = ?, resolved_at = NULL
		 WHERE provider = ? AND provider_event_id = ? AND outcome = ?`,
		domain.OutcomePending,
		receivedAt,
		provider,
		providerEventID,
		domain.OutcomeFailed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkOutcome(ctx context.Context, db *gorm.DB, provider, providerEventID, outcome, failureReason string, resolvedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET outcome = ?, failure_reason = ?, resolved_at = ?
		 WHERE provider = ? AND provider_event_id = ? AND outcome = ?`,
		outcome,
		failureReason,
		resolvedAt,
		provider,
		providerEventID,
		domain.OutcomePending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
