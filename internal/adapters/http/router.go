package http

import (
	"context"

	"github.com/dkeye/Talk/internal/adapters/signal"
	"github.com/dkeye/Talk/internal/app"
	"github.com/dkeye/Talk/internal/auth"
	"github.com/dkeye/Talk/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, router *app.Router, verifier auth.Verifier, limiter *signal.RateLimiter) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	ctrl := signal.NewController(router, verifier, limiter, cfg.ReadLimit, cfg.PingPeriod)

	api := r.Group("/api")
	api.POST("/auth/login", Login(cfg.Secret))
	api.GET("/ws/signal", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
