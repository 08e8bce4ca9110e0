package instagram

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

	"github.com/standhq/stand/internal/ingest/domain"
	socialdomain "github.com/standhq/stand/internal/social/domain"
)

type Adapter struct {
	appSecret string
}

func New(appSecret string) (*Adapter, error) {
	appSecret = strings.TrimSpace(appSecret)
	if appSecret == "" {
		return nil, errors.New("instagram app secret is required")
	}
	return &Adapter{appSecret: appSecret}, nil
}

func (a *Adapter) Provider() string {
	return "instagram"
}

// Verify checks Meta's X-Hub-Signature-256 header, an HMAC-SHA256 of
// the raw body keyed by the app secret.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("X-Hub-Signature-256"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}
	provided, ok := strings.CutPrefix(sigHeader, "sha256=")
	if !ok {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.appSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.TrimSpace(provided)), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type envelope struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	GameID   string           `json:"game_id"`
	GameType string           `json:"game_type"`
	Cards    []map[string]any `json:"cards"`
}

// Parse expands a Meta delivery into one event per entry. Meta assigns
// no per-delivery id, so the entry id and timestamp form the
// idempotency key.
func (a *Adapter) Parse(ctx context.Context, payload []byte) ([]domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if len(env.Entry) == 0 {
		return nil, domain.ErrEventIgnored
	}

	events := make([]domain.Event, 0, len(env.Entry))
	for _, e := range env.Entry {
		if strings.TrimSpace(e.ID) == "" {
			return nil, domain.ErrInvalidEvent
		}
		content, ok := contentChange(e)
		if !ok {
			continue
		}
		if strings.TrimSpace(content.Value.GameID) == "" {
			return nil, domain.ErrInvalidEvent
		}
		events = append(events, domain.Event{
			Provider:        a.Provider(),
			ProviderEventID: fmt.Sprintf("%s:%d", e.ID, e.Time),
			Kind:            content.Field,
			Social: &socialdomain.Event{
				GameID:   content.Value.GameID,
				GameType: content.Value.GameType,
				Cards:    content.Value.Cards,
			},
		})
	}
	if len(events) == 0 {
		return nil, domain.ErrEventIgnored
	}
	return events, nil
}

func contentChange(e entry) (change, bool) {
	for _, c := range e.Changes {
		if strings.TrimSpace(c.Field) == "content" {
			return c, true
		}
	}
	return change{}, false
}
