package middleware

import (
	"net/http"
	"sync"

	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"
)

// FamilyRateLimiter manages rate limiters per family
type FamilyRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewFamilyRateLimiter creates a new family rate limiter
func NewFamilyRateLimiter(rps float64, burst int) *FamilyRateLimiter {
	return &FamilyRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// GetLimiter returns the rate limiter for a specific family
func (rl *FamilyRateLimiter) GetLimiter(familyID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[familyID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[familyID]
		if !exists {
			limiter = rate.NewLimiter(rl.rate, rl.burst)
			rl.limiters[familyID] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// RateLimitMiddleware limits requests per family. The family id comes
// from the query string or, for JSON bodies, a non-consuming bind.
func RateLimitMiddleware(rl *FamilyRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		familyID := c.Query("family_id")

		if familyID == "" {
			var req struct {
				FamilyID string `json:"family_id"`
			}
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
				familyID = req.FamilyID
			}
		}

		// No family id means validation will reject the request anyway.
		if familyID == "" {
			c.Next()
			return
		}

		if !rl.GetLimiter(familyID).Allow() {
			metrics.RateLimitExceeded.WithLabelValues(familyID).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
