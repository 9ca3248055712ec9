package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/moderation/internal/middleware"
	"github.com/mx-space/moderation/internal/modules/comment"
	"github.com/mx-space/moderation/internal/pkg/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func (a *App) registerRoutes(h *comment.Handler) {
	r := a.router
	adminMW := middleware.AdminAuth(a.cfg.AdminToken)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cronGroup := r.Group("/health/cron", adminMW)
	cronGroup.GET("", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	cronGroup.POST("/:name", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.NoContent(c)
	})

	api := r.Group("/api")
	var mw comment.Middlewares
	if a.redis != nil {
		mw.Submit = []gin.HandlerFunc{
			middleware.RateLimit(a.redis, middleware.RateLimitOptions{
				Scope: "comment",
				OnLimited: func(c *gin.Context, ip string) {
					go a.bark.ThrottlePush(context.WithoutCancel(c.Request.Context()), ip, c.Request.URL.Path)
				},
			}, a.logger.Named("RateLimit")),
			middleware.Idempotence(a.redis),
		}
		mw.Cache = middleware.HTTPCache(a.redis, middleware.HTTPCacheOptions{
			Key:           comment.CacheKey,
			BypassCookies: []string{comment.SelectedCommentCookie},
		})
		api.DELETE("/cache", adminMW, a.purgeCache)
	}
	h.RegisterRoutes(api, adminMW, middleware.OptionalAdmin(a.cfg.AdminToken), mw)
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := a.db.DB()
	dbOK := err == nil && sqlDB.PingContext(ctx) == nil
	body := gin.H{
		"database": dbOK,
		"uptime":   humanizeDuration(time.Since(a.startedAt)),
	}
	healthy := dbOK
	if a.redis != nil {
		redisOK := a.redis.Raw().Ping(ctx).Err() == nil
		body["redis"] = redisOK
		healthy = healthy && redisOK
	}

	code := http.StatusOK
	body["status"] = "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(code, body)
}

func (a *App) purgeCache(c *gin.Context) {
	n, err := middleware.PurgeHTTPCache(c.Request.Context(), a.redis)
	if err != nil {
		a.logger.Warn("purge response cache", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"purged": n})
}
