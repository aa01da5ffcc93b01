package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cartflow/internal/cache"
	"github.com/cartflow/internal/config"
	"github.com/cartflow/internal/constants"
	publichandlers "github.com/cartflow/internal/http/handlers/public"
	handlershared "github.com/cartflow/internal/http/handlers/shared"
	"github.com/cartflow/internal/logger"
	"github.com/cartflow/internal/models"
	"github.com/cartflow/internal/provider"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	cartHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:%s", redisPrefix, constants.CheckoutRateLimitScope),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.CheckoutRateLimit.BlockSeconds,
		MessageKey:    "error.checkout_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(UserJWTAuthMiddleware(cfg.UserJWT))
	{
		cart := apiV1.Group("/cart")
		{
			cart.GET("", cartHandler.GetCart)
			cart.POST("/items", cartHandler.AddCartItem)
			cart.PATCH("/items/:id", cartHandler.UpdateCartItem)
			cart.DELETE("/items/:id", cartHandler.DeleteCartItem)
			cart.POST("/coupons", cartHandler.ApplyCoupon)
			cart.DELETE("/coupons/:code", cartHandler.RemoveCoupon)
			cart.POST("/checkout", RateLimitMiddleware(cache.Client(), checkoutRule, KeyByUserID), cartHandler.Checkout)
		}

		apiV1.GET("/coupons/usages", cartHandler.ListCouponUsages)
	}

	// 健康检查
	r.GET("/healthz", healthHandler)

	return r
}

func healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true
	if err := pingDatabase(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if !cache.Enabled() {
		checks["redis"] = "disabled"
	} else if err := cache.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		handlershared.RequestLog(c).Warnw("health_check_failed", "checks", checks)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": handlershared.Message("error.service_unhealthy"),
			"checks":  checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

func pingDatabase(ctx context.Context) error {
	if models.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
