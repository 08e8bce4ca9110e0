package server_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingrepo "github.com/standhq/stand/internal/billing/repository"
	billingservice "github.com/standhq/stand/internal/billing/service"
	"github.com/standhq/stand/internal/cache"
	"github.com/standhq/stand/internal/clock"
	"github.com/standhq/stand/internal/config"
	gamerepo "github.com/standhq/stand/internal/game/repository"
	gameservice "github.com/standhq/stand/internal/game/service"
	"github.com/standhq/stand/internal/ingest/adapters"
	"github.com/standhq/stand/internal/ingest/adapters/instagram"
	"github.com/standhq/stand/internal/ingest/adapters/stripe"
	ingestservice "github.com/standhq/stand/internal/ingest/service"
	"github.com/standhq/stand/internal/server"
	socialservice "github.com/standhq/stand/internal/social/service"
	webhookeventdomain "github.com/standhq/stand/internal/webhookevent/domain"
	webhookeventrepo "github.com/standhq/stand/internal/webhookevent/repository"
	webhookeventservice "github.com/standhq/stand/internal/webhookevent/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	stripeSecret    = "whsec_test"
	instagramSecret = "ig_app_secret"
	verifyToken     = "verify_me"
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
		`CREATE TABLE webhook_events (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT 'pending',
			failure_reason TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX uq_webhook_events_provider_event ON webhook_events(provider, provider_event_id)`,
		`CREATE TABLE billing_states (
			subscription_id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'trial',
			plan_code TEXT NOT NULL DEFAULT '',
			active_until TIMESTAMP,
			last_event_sequence BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type testServer struct {
	engine   *gin.Engine
	dedupSvc webhookeventdomain.Service
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	node, err := snowflake.NewNode(24)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	gameSvc := gameservice.NewService(gameservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  gamerepo.Provide(),
	})
	billingSvc := billingservice.NewService(billingservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Plans: config.NewStaticPlanConfigHolder(config.DefaultPlanConfig()),
		Repo:  billingrepo.Provide(),
	})
	socialSvc := socialservice.NewService(socialservice.Params{
		Log:      zap.NewNop(),
		GameSvc:  gameSvc,
		Resolver: cache.NewGameResolverCache(),
	})
	dedupSvc := webhookeventservice.NewService(webhookeventservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  webhookeventrepo.Provide(),
	})

	stripeAdapter, err := stripe.New(stripeSecret)
	if err != nil {
		t.Fatalf("stripe adapter: %v", err)
	}
	instagramAdapter, err := instagram.New(instagramSecret)
	if err != nil {
		t.Fatalf("instagram adapter: %v", err)
	}
	ingestSvc := ingestservice.NewService(ingestservice.Params{
		Log:        zap.NewNop(),
		Clock:      clk,
		Registry:   adapters.NewRegistry(stripeAdapter, instagramAdapter),
		DedupSvc:   dedupSvc,
		BillingSvc: billingSvc,
		SocialSvc:  socialSvc,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())

	server.NewServer(server.ServerParams{
		Gin: engine,
		Cfg: config.Config{
			InstagramVerifyToken: verifyToken,
		},
		Log:        zap.NewNop(),
		GameSvc:    gameSvc,
		BillingSvc: billingSvc,
		IngestSvc:  ingestSvc,
	})

	return testServer{engine: engine, dedupSvc: dedupSvc}
}

func stripeHeaders(payload []byte) http.Header {
	mac := hmac.New(sha256.New, []byte(stripeSecret))
	_, _ = mac.Write([]byte("1700000000." + string(payload)))

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1700000000,v1="+hex.EncodeToString(mac.Sum(nil)))
	return headers
}

func TestWebhookSignatureFailure(t *testing.T) {
	ts := newTestServer(t)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1,"data":{"object":{}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	record, err := ts.dedupSvc.Get(context.Background(), "stripe", "evt_1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record != nil {
		t.Fatalf("signature failure must not create a ledger record, got %+v", record)
	}
}

func TestWebhookDeliveryAcknowledged(t *testing.T) {
	ts := newTestServer(t)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000100,
		"data": {"object": {
			"id": "cs_1",
			"payment_status": "paid",
			"metadata": {"subscription_id": "sub_1"}
		}}
	}`)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
		req.Header = stripeHeaders(payload)

		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/billing/subscriptions/sub_1", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state struct {
		Status            string `json:"status"`
		LastEventSequence int64  `json:"last_event_sequence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Status != "active" || state.LastEventSequence != 1700000100 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestInstagramHandshake(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/instagram?hub.mode=subscribe&hub.verify_token="+verifyToken+"&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("expected challenge echo, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet,
		"/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet,
		"/webhooks/instagram?hub.mode=subscribe&hub.verify_token="+verifyToken, nil)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing challenge, got %d", rec.Code)
	}
}

func TestGameConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	body := []byte(`{"owner_user_id":"user_1","game_type":"INFOCARDS","config":{"cards":[]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/games", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create game: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var game struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &game); err != nil {
		t.Fatalf("decode game: %v", err)
	}

	update := []byte(`{"config":{"cards":[{"q":"2+2","a":"4"}]}}`)
	req = httptest.NewRequest(http.MethodPut, "/v1/games/"+game.ID+"/config/INFOCARDS", bytes.NewReader(update))
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set config: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/games/"+game.ID+"/config/INFOCARDS", nil)
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get config: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Config map[string]any `json:"config"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	cards, ok := got.Config["cards"].([]any)
	if !ok || len(cards) != 1 {
		t.Fatalf("unexpected config: %#v", got.Config)
	}
}

func TestStaleConfigWriteConflict(t *testing.T) {
	ts := newTestServer(t)

	body := []byte(`{"owner_user_id":"user_1","game_type":"INFOCARDS"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/games", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create game: expected 201, got %d", rec.Code)
	}
	var game struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &game); err != nil {
		t.Fatalf("decode game: %v", err)
	}

	fresh := []byte(`{"config":{"v":"new"},"updated_at":"2026-03-02T00:00:00Z"}`)
	req = httptest.NewRequest(http.MethodPut, "/v1/games/"+game.ID+"/config/INFOCARDS", bytes.NewReader(fresh))
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh write: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stale := []byte(`{"config":{"v":"old"},"updated_at":"2026-03-01T00:00:00Z"}`)
	req = httptest.NewRequest(http.MethodPut, "/v1/games/"+game.ID+"/config/INFOCARDS", bytes.NewReader(stale))
	rec = httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale write: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetMissingGame(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/games/missing/config/INFOCARDS", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
