package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/mx-space/moderation/internal/config"
)

// corsConfig allows every origin in development. Elsewhere, when
// allowed_origins is set, only matching hosts may call the API with
// credentials.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length", "x-mx-cache", "Retry-After"},
		AllowCredentials: true,
	}
	patterns := cfg.AllowedOrigins
	if len(patterns) == 0 || cfg.IsDev() {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOriginFunc = func(origin string) bool {
		host := originHost(origin)
		for _, pattern := range patterns {
			if matchOrigin(strings.ToLower(pattern), host) {
				return true
			}
		}
		return false
	}
	return c
}

// originHost returns the lower-cased "host[:port]" of an Origin header.
func originHost(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(origin)
}

// matchOrigin supports exact hosts, "*.example.com" subdomains and
// "localhost:*" ports.
func matchOrigin(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
