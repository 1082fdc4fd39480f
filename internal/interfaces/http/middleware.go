package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const adminContextKey = "admin"

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// metricsMiddleware records request counts and latency by route template
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	m := s.deps.Metrics
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		done := m.RequestStarted()
		c.Next()
		done()

		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware answers preflight requests for the configured origins
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(s.config.AllowedOrigins))
	for _, origin := range s.config.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(origin, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			switch {
			case allowAll:
				c.Header("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authMiddleware requires a valid admin bearer token
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "인증이 필요합니다", nil)
			return
		}

		claims, err := s.deps.Auth.Verify(strings.TrimSpace(token))
		if err != nil {
			s.logger.Info("Rejected admin token", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "인증이 필요합니다", nil)
			return
		}

		c.Set(adminContextKey, claims.Username)
		c.Next()
	}
}

// rateLimitMiddleware throttles per client IP; a no-op when disabled
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		if ok, retry := s.limiter.allow(c.ClientIP()); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			abortWithError(c, http.StatusTooManyRequests, CodeRateLimited, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요", nil)
			return
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP. Idle buckets are
// dropped during the sweep that runs at most once per idleAfter.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(rps float64, burst int, now func() time.Time) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(rps),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		lastSweep: now(),
		now:       now,
	}
}

func (l *ipRateLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.idleAfter {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}
