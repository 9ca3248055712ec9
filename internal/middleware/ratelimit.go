package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	pkgredis "github.com/mx-space/moderation/internal/pkg/redis"
	"github.com/mx-space/moderation/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	defaultRateLimitMax    = 5
	defaultRateLimitWindow = time.Minute
)

type RateLimitOptions struct {
	Scope  string
	Max    int
	Window time.Duration
	// OnLimited runs for every rejected request.
	OnLimited func(c *gin.Context, ip string)
}

// RateLimit enforces a fixed-window limit per client IP. Admin requests and
// Redis failures pass through.
func RateLimit(client *pkgredis.Client, opts RateLimitOptions, log *zap.Logger) gin.HandlerFunc {
	if opts.Max <= 0 {
		opts.Max = defaultRateLimitMax
	}
	if opts.Window <= 0 {
		opts.Window = defaultRateLimitWindow
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if client == nil || IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		windowKey := time.Now().UnixNano() / int64(opts.Window)
		key := fmt.Sprintf("mx:rate_limit:%s:%s:%d", opts.Scope, ip, windowKey)

		count, err := client.IncrWindow(c.Request.Context(), key, opts.Window+time.Second)
		if err != nil {
			log.Warn("rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(opts.Max) {
			log.Info("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			if opts.OnLimited != nil {
				opts.OnLimited(c, ip)
			}
			c.Header("Retry-After", strconv.Itoa(int(opts.Window/time.Second)))
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}

		c.Next()
	}
}
