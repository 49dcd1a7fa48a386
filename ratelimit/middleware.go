package ratelimit

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RejectMessage is the body written with a 429 response.
const RejectMessage = "Too many requests, please try again later."

type decisionKey struct{}

// WithDecision returns a copy of ctx carrying d.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the decision stored by Middleware.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// Identity returns the client identity used as the counter key.
func (l *Limiter) Identity(r *http.Request) string {
	if l.cfg.TrustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware admits or rejects each request before next runs. Admitted
// requests carry their Decision in the request context.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := l.Allow(r.Context(), l.Identity(r))
		writeHeaders(w, d)

		switch {
		case errors.Is(err, ErrRateLimited):
			w.Header().Set("Retry-After", strconv.FormatInt(seconds(d.RetryAfter), 10))
			http.Error(w, RejectMessage, http.StatusTooManyRequests)
			return
		case err != nil:
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), d)))
	})
}

func writeHeaders(w http.ResponseWriter, d Decision) {
	if d.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("RateLimit-Reset", strconv.FormatInt(seconds(d.ResetAfter), 10))
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
