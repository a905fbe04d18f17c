package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"gateway/internal/logger"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	mutex     sync.Mutex
	logger    *logger.Logger
}

// NewRateLimiter returns nil when perSecond is 0; a nil limiter lets every request through.
func NewRateLimiter(perSecond float64, burst int, logger *logger.Logger) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      rate.Limit(perSecond),
		burstSize: burst,
		logger:    logger,
	}
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	limiter, ok := l.bucket[ip]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burstSize)
		l.bucket[ip] = limiter
	}
	return limiter
}

// Limit wraps next with the per-IP check.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiterFor(ip).Allow() {
			l.logger.Warning("Too many requests for IP %s", ip)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
