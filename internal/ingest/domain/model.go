package domain

import (
	"context"
	"errors"
	"net/http"

	billingdomain "github.com/standhq/stand/internal/billing/domain"
	socialdomain "github.com/standhq/stand/internal/social/domain"
)

var (
	// ErrInvalidSignature is terminal: the provider must not retry.
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrInvalidPayload   = errors.New("webhook payload is not valid")
	ErrInvalidEvent     = errors.New("webhook event is missing required fields")
	ErrProviderNotFound = errors.New("webhook provider not registered")
	// ErrEventIgnored marks event types outside this pipeline's
	// interest. Callers acknowledge and move on.
	ErrEventIgnored = errors.New("webhook event type ignored")
	// ErrEventInFlight means another delivery of the same event id is
	// being processed right now. The provider should retry later.
	ErrEventInFlight = errors.New("webhook event is already being processed")
)

// Event is one deduplicatable unit extracted from a provider delivery.
// Exactly one of Billing or Social is set.
type Event struct {
	Provider        string
	ProviderEventID string
	Kind            string
	Billing         *billingdomain.Event
	Social          *socialdomain.Event
}

// Adapter verifies and parses one provider's deliveries. A single
// delivery may carry several events (Meta batches entries); each is
// deduplicated and reconciled independently.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) ([]Event, error)
}

type Service interface {
	// ProcessWebhook runs the full pipeline: verify, parse, dedup,
	// dispatch, mark outcome. The returned error maps onto the
	// transport's retry semantics.
	ProcessWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
