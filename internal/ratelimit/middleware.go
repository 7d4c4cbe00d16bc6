package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/pkg/logger"
	"kagra-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limit describes a fixed-window budget for one route group.
type Limit struct {
	// Tag partitions counters per surface ("api", "search", "admin").
	Tag      string
	Requests int
	Window   time.Duration
}

// Middleware returns a gin handler enforcing lim per client IP. Counters
// live in Redis so the limit holds across replicas. A Redis outage lets
// traffic through: availability beats throttling for this surface.
func Middleware(rdb *redis.Client, lim Limit, auditor *audit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s", lim.Tag, c.ClientIP())
		allowed, retryAfter, err := utils.AllowRate(c.Request.Context(), rdb, key, lim.Requests, lim.Window)
		if err != nil {
			logger.FromGin(c).Warn("rate limit check failed, allowing request", "tag", lim.Tag, "err", err)
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		uid, _ := auth.UserID(c.Request.Context())
		auditor.LogSecurityEvent(c.Request.Context(), audit.ActionRateLimitExceeded, uid,
			audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()},
			map[string]any{"tag": lim.Tag, "limit": lim.Requests, "window": lim.Window.String()})

		seconds := int(retryAfter.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
