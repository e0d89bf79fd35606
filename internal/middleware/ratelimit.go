package middleware

import (
	"sync"

	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CallerLimiters hands out one token bucket per caller.
type CallerLimiters struct {
	mu       sync.Mutex
	qps      rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewCallerLimiters(qps float64, burst int) *CallerLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &CallerLimiters{
		qps:      rate.Limit(qps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *CallerLimiters) For(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[caller]
	if !ok {
		lim = rate.NewLimiter(l.qps, l.burst)
		l.limiters[caller] = lim
	}
	return lim
}

// RateLimitMiddleware must run after AuthMiddleware. A zero qps disables limiting.
func RateLimitMiddleware(limiters *CallerLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiters == nil || limiters.qps <= 0 {
			c.Next()
			return
		}

		if !limiters.For(Caller(c)).Allow() {
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
