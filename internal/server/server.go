package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/standhq/stand/internal/billing/domain"
	"github.com/standhq/stand/internal/config"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	ingestdomain "github.com/standhq/stand/internal/ingest/domain"
	"github.com/standhq/stand/internal/observability"
	obsmiddleware "github.com/standhq/stand/internal/observability/logger"
	obsmetrics "github.com/standhq/stand/internal/observability/metrics"
	obstracing "github.com/standhq/stand/internal/observability/tracing"
	"github.com/standhq/stand/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	gameSvc    gamedomain.Service
	billingSvc billingdomain.Service
	ingestSvc  ingestdomain.Service
	limiter    *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	GameSvc    gamedomain.Service
	BillingSvc billingdomain.Service
	IngestSvc  ingestdomain.Service
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		gameSvc:    p.GameSvc,
		billingSvc: p.BillingSvc,
		ingestSvc:  p.IngestSvc,
		limiter:    p.Limiter,
	}
	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/webhooks/instagram", s.HandleInstagramHandshake)
	s.engine.POST("/webhooks/:provider", s.rateLimitWebhook, s.HandleWebhook)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/games", s.HandleCreateGame)
		v1.GET("/games/:game_id", s.HandleGetGame)
		v1.GET("/games/:game_id/config/:game_type", s.HandleGetConfig)
		v1.PUT("/games/:game_id/config/:game_type", s.HandleSetConfig)
		v1.GET("/billing/subscriptions/:subscription_id", s.HandleGetBillingState)
	}
}

// rateLimitWebhook sheds load per provider before signature checks run.
// Providers treat 429 as retryable.
func (s *Server) rateLimitWebhook(c *gin.Context) {
	if !s.limiter.Enabled() {
		return
	}

	allowed, err := s.limiter.Allow(c.Request.Context(), c.Param("provider"))
	if err != nil {
		// Limiter outage must not drop webhooks.
		s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
		return
	}
	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
			"type":    "rate_limited",
			"message": "too many requests",
		}})
	}
}
