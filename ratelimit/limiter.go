// Package ratelimit bounds the request rate of each client identity with a
// fixed-window counter kept in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huykn/course-marketplace/storage"
	"github.com/huykn/course-marketplace/types"
)

// Policy selects what Allow does when Redis cannot be reached.
type Policy int

const (
	// FailOpen admits every request while Redis is down.
	FailOpen Policy = iota
	// FailClosed rejects every request while Redis is down.
	FailClosed
	// FailLocal counts requests in process memory while Redis is down.
	FailLocal
)

func (p Policy) String() string {
	switch p {
	case FailOpen:
		return "fail-open"
	case FailClosed:
		return "fail-closed"
	case FailLocal:
		return "fail-local"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the names returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail-open", "open":
		return FailOpen, nil
	case "fail-closed", "closed":
		return FailClosed, nil
	case "fail-local", "local":
		return FailLocal, nil
	}
	return FailOpen, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
}

var (
	// ErrRateLimited is returned when an identity has used up its window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidConfig is returned when the limiter configuration is invalid.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)

// Config configures a Limiter.
type Config struct {
	// Window is the length of one counting window.
	Window time.Duration

	// Max is the number of requests admitted per identity per window.
	Max int64

	// Prefix namespaces the counter keys.
	Prefix string

	// Policy applies when Redis is unreachable. Defaults to FailOpen.
	Policy Policy

	// TrustForwardedFor takes the client identity from X-Forwarded-For.
	// Only enable it behind a proxy that sets the header.
	TrustForwardedFor bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives degraded-mode warnings.
	Logger types.Logger

	// OnError is called with every Redis failure.
	OnError func(error)
}

// DefaultConfig returns 100 requests per 15 minutes, failing open.
func DefaultConfig() Config {
	return Config{
		Window: 15 * time.Minute,
		Max:    100,
		Prefix: "rl:",
		Policy: FailOpen,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	}
	if c.Max <= 0 {
		return fmt.Errorf("%w: max must be positive", ErrInvalidConfig)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidConfig)
	}
	if c.Policy < FailOpen || c.Policy > FailLocal {
		return fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, c.Policy)
	}
	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAfter time.Duration
	RetryAfter time.Duration
	// Degraded is set when Redis was unreachable and Policy decided.
	Degraded bool
}

// fixedWindowScript rejects without incrementing once the window is full.
// KEYS[1] counter key, ARGV[1] max, ARGV[2] window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current}
`)

// Limiter is a fixed-window admission controller shared by all requests.
type Limiter struct {
	store  *storage.RedisStore
	cfg    Config
	logger types.Logger
	local  *localStore
}

// New creates a Limiter that keeps its counters in store.
func New(store *storage.RedisStore, cfg Config) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		store:  store,
		cfg:    cfg,
		logger: types.OrNoOp(cfg.Logger),
		local:  newLocalStore(),
	}, nil
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Allow counts one request for identity in the current window. A rejected
// request returns ErrRateLimited. A Redis failure is resolved by the
// configured Policy; only FailClosed returns it, wrapped in
// storage.ErrUnavailable.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.cfg.Now()
	windowStart := now.Truncate(l.cfg.Window)
	resetAfter := windowStart.Add(l.cfg.Window).Sub(now)

	key := l.cfg.Prefix + identity + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
	res, err := l.store.RunScript(ctx, fixedWindowScript, []string{key}, l.cfg.Max, l.cfg.Window.Milliseconds())
	if err != nil {
		return l.degraded(identity, now, err)
	}
	if len(res) != 2 {
		return l.degraded(identity, now, fmt.Errorf("unexpected script reply %v", res))
	}

	d := Decision{
		Allowed:    res[0] == 1,
		Limit:      l.cfg.Max,
		Remaining:  max(l.cfg.Max-res[1], 0),
		ResetAfter: resetAfter,
	}
	if !d.Allowed {
		d.RetryAfter = resetAfter
		return d, ErrRateLimited
	}
	return d, nil
}

func (l *Limiter) degraded(identity string, now time.Time, err error) (Decision, error) {
	if l.cfg.OnError != nil {
		l.cfg.OnError(err)
	}
	l.logger.Warn("rate limiter degraded", "policy", l.cfg.Policy.String(), "identity", identity, "error", err)

	switch l.cfg.Policy {
	case FailClosed:
		return Decision{Limit: l.cfg.Max, Degraded: true}, err
	case FailLocal:
		d := l.local.allow(identity, l.cfg.Max, l.cfg.Window, now)
		d.Degraded = true
		if !d.Allowed {
			return d, ErrRateLimited
		}
		return d, nil
	default:
		return Decision{Allowed: true, Limit: l.cfg.Max, Remaining: l.cfg.Max, Degraded: true}, nil
	}
}
