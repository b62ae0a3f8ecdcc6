package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"apotekku/backend/internal/service"
)

// NewRedisLimiterStore shares rate-limit counters across server instances.
func NewRedisLimiterStore(client *redis.Client) (limiter.Store, error) {
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "apotekku:limiter",
		MaxRetry: 3,
	})
}

func newLimiter(store limiter.Store, formatted string, fallback string) (*limiter.Limiter, error) {
	if strings.TrimSpace(formatted) == "" {
		formatted = fallback
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}
	if store == nil {
		store = memory.NewStore()
	}
	return limiter.New(store, rate), nil
}

type errorWriter func(w http.ResponseWriter, status int, err error)

// rateLimit counts requests per authenticated user, or per client address
// before login. A failing limiter store lets the request through.
func (a *API) rateLimit(scope string, l *limiter.Limiter, write errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := l.Get(r.Context(), scope+":"+limiterKey(r))
			if err != nil {
				log.Printf("[ratelimit] WARN: limiter unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			setRateHeaders(w, result)
			if result.Reached {
				write(w, http.StatusTooManyRequests, errors.New("too many requests, try again shortly"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowAttempt spends one attempt for key. Used for manager PIN checks.
func allowAttempt(ctx context.Context, l *limiter.Limiter, key string) bool {
	result, err := l.Get(ctx, key)
	if err != nil {
		log.Printf("[ratelimit] WARN: limiter unavailable: %v", err)
		return true
	}
	return !result.Reached
}

func limiterKey(r *http.Request) string {
	if actor, ok := service.ActorFromContext(r.Context()); ok {
		return "user:" + actor.Username
	}
	return "ip:" + clientKey(r)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func setRateHeaders(w http.ResponseWriter, ctx limiter.Context) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
}
