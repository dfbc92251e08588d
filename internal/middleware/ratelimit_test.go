package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestLimiter(now *time.Time, perMinute int) *rateLimiter {
	return &rateLimiter{
		limit:         rate.Every(time.Minute / time.Duration(perMinute)),
		burst:         perMinute,
		buckets:       make(map[string]*limiterEntry),
		idleTTL:       10 * time.Minute,
		sweepInterval: time.Minute,
		now: func() time.Time {
			return *now
		},
	}
}

func uploadContext(userID string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/imports", nil)
	if userID != "" {
		c.Set(ContextUserIDKey, userID)
	}
	return c
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := newTestLimiter(&now, 2)

	for i := 0; i < 2; i++ {
		c := uploadContext("user-1")
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
	c := uploadContext("user-1")
	limiter.handle(c)
	require.True(t, c.IsAborted())

	other := uploadContext("user-2")
	limiter.handle(other)
	require.False(t, other.IsAborted())

	now = now.Add(31 * time.Second)
	c = uploadContext("user-1")
	limiter.handle(c)
	require.False(t, c.IsAborted())
}

func TestRateLimiterCleanupExpiredLocked_RemovesIdleBuckets(t *testing.T) {
	base := time.Now()
	limiter := newTestLimiter(&base, 1)
	limiter.buckets["expired"] = &limiterEntry{limiter: rate.NewLimiter(1, 1), lastSeen: base.Add(-20 * time.Minute)}
	limiter.buckets["active"] = &limiterEntry{limiter: rate.NewLimiter(1, 1), lastSeen: base.Add(-2 * time.Minute)}

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.buckets, "expired")
	require.Contains(t, limiter.buckets, "active")
}

func TestUploadRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := UploadRateLimit(0)
	for i := 0; i < 10; i++ {
		c := uploadContext("user-1")
		h(c)
		require.False(t, c.IsAborted())
	}
}
