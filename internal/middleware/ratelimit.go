package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/mcatalog/internal/pkg/errcode"
	"github.com/xxxsen/mcatalog/internal/pkg/response"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per caller; buckets idle for longer than
// idleTTL are dropped on the next sweep.
type rateLimiter struct {
	mu            sync.Mutex
	limit         rate.Limit
	burst         int
	buckets       map[string]*limiterEntry
	idleTTL       time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

// UploadRateLimit allows perMinute requests per user, bursting up to the same
// amount. Keys fall back to the client IP before authentication.
func UploadRateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	l := &rateLimiter{
		limit:         rate.Every(time.Minute / time.Duration(perMinute)),
		burst:         perMinute,
		buckets:       make(map[string]*limiterEntry),
		idleTTL:       10 * time.Minute,
		sweepInterval: time.Minute,
		now:           time.Now,
	}
	return l.handle
}

func (l *rateLimiter) key(c *gin.Context) string {
	if uid := UserID(c); uid != "" {
		return "u:" + uid
	}
	return "ip:" + c.ClientIP()
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
		l.lastSweep = now
	}
	entry, ok := l.buckets[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	key := l.key(c)
	if l.allow(key) {
		c.Next()
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
		zap.String("key", key),
		zap.String("path", c.Request.URL.Path),
	)
	response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
	c.Abort()
}
