package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	billingdomain "github.com/standhq/stand/internal/billing/domain"
	"github.com/standhq/stand/internal/ingest/domain"
)

type Adapter struct {
	webhookSecret string
}

func New(webhookSecret string) (*Adapter, error) {
	webhookSecret = strings.TrimSpace(webhookSecret)
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	return &Adapter{webhookSecret: webhookSecret}, nil
}

func (a *Adapter) Provider() string {
	return "stripe"
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) ([]domain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutSession(event)
	case "invoice.payment_failed":
		return a.parseInvoiceFailed(event)
	case "customer.subscription.deleted":
		return a.parseSubscriptionDeleted(event)
	default:
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Subscription      string            `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID string `json:"id"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent) ([]domain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	// Only settled sessions activate billing. Async payment methods
	// emit a separate completed event once funds clear.
	switch strings.TrimSpace(session.PaymentStatus) {
	case "paid", "no_payment_required":
	default:
		return nil, domain.ErrEventIgnored
	}

	subscriptionID := firstNonEmpty(
		session.Metadata["subscription_id"],
		session.Subscription,
		session.ClientReferenceID,
	)
	if subscriptionID == "" {
		return nil, domain.ErrInvalidEvent
	}

	return []domain.Event{a.billingEvent(event, subscriptionID, billingdomain.KindPaymentSucceeded)}, nil
}

func (a *Adapter) parseInvoiceFailed(event stripeEvent) ([]domain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	subscriptionID := firstNonEmpty(invoice.Subscription, invoice.Metadata["subscription_id"])
	if subscriptionID == "" {
		return nil, domain.ErrInvalidEvent
	}

	return []domain.Event{a.billingEvent(event, subscriptionID, billingdomain.KindPaymentFailed)}, nil
}

func (a *Adapter) parseSubscriptionDeleted(event stripeEvent) ([]domain.Event, error) {
	var subscription stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &subscription); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(subscription.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	return []domain.Event{a.billingEvent(event, subscription.ID, billingdomain.KindSubscriptionCanceled)}, nil
}

func (a *Adapter) billingEvent(event stripeEvent, subscriptionID, kind string) domain.Event {
	return domain.Event{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		Kind:            kind,
		Billing: &billingdomain.Event{
			SubscriptionID: strings.TrimSpace(subscriptionID),
			Sequence:       event.Created,
			Kind:           kind,
			OccurredAt:     time.Unix(event.Created, 0).UTC(),
		},
	}
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
