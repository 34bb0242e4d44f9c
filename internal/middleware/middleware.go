package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 30 * time.Second

// Config holds middleware configuration. A non-positive RateLimit disables
// rate limiting.
type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	RateLimit      rate.Limit
	RateLimitBurst int

	RequestTimeout time.Duration
}

// Chain wraps the router with the request pipeline. From the outside in:
// request id, access log, request logger, recovery, CORS, rate limit, timeout.
func Chain(config *Config) func(http.Handler) http.Handler {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	var rateLimiter *RateLimiter
	if config.RateLimit > 0 {
		rateLimiter = NewRateLimiter(config.RateLimit, config.RateLimitBurst)
	}

	return func(handler http.Handler) http.Handler {
		h := Timeout(timeout)(handler)

		if rateLimiter != nil {
			h = rateLimiter.Middleware()(h)
		}

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)
		h = ContextLogger(config.Logger)(h)
		h = Logger(config.Logger)(h)

		return RequestID(h)
	}
}
