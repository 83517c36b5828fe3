package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/service"
	"go.uber.org/zap"
)

// NewRouter wires middlewares, the system endpoints and the wallet API.
// A zero RPS disables rate limiting.
func NewRouter(svc *service.WalletService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())

	r.GET("/healthz", healthHandler(svc))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("")
	if rl.RPS > 0 {
		api.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	}
	RegisterHandlers(api, svc)
	return r
}

func healthHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := svc.Repo().DB(ctx).DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
