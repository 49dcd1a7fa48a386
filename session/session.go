// Package session maps an opaque client-held token to server-side session
// state kept in Redis with a sliding expiration.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/huykn/course-marketplace/storage"
	"github.com/huykn/course-marketplace/types"
)

var (
	// ErrInvalidConfig is returned when the provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid session configuration")

	// ErrEmptyToken is returned when persisting under an empty token.
	ErrEmptyToken = errors.New("session token is empty")

	// ErrNilSession is returned when persisting or issuing a nil session.
	ErrNilSession = errors.New("session is nil")
)

// Session is the state stored for one token. It is never sent to the client.
type Session struct {
	UserID    string         `json:"userId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Data      map[string]any `json:"data,omitempty"`
}

// Authenticated reports whether the session belongs to a signed-in user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Config configures a Provider.
type Config struct {
	// Prefix namespaces session keys in Redis.
	Prefix string

	// CookieName is the name of the cookie carrying the token.
	CookieName string

	// TTL is how long an untouched session lives.
	TTL time.Duration

	// Secure marks the cookie as HTTPS only.
	Secure bool

	Logger types.Logger
}

// DefaultConfig returns the "sess:" prefix, a "qid" cookie and a 7 day TTL.
func DefaultConfig() Config {
	return Config{
		Prefix:     "sess:",
		CookieName: "qid",
		TTL:        7 * 24 * time.Hour,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Prefix == "" || c.CookieName == "" {
		return fmt.Errorf("%w: prefix and cookie name are required", ErrInvalidConfig)
	}
	if c.TTL < time.Second {
		return fmt.Errorf("%w: ttl must be at least one second", ErrInvalidConfig)
	}
	return nil
}

// Provider issues, resolves and destroys sessions.
type Provider struct {
	store      *storage.RedisStore
	cfg        Config
	logger     types.Logger
	serializer storage.Serializer
}

// New creates a Provider that keeps sessions in store.
func New(store *storage.RedisStore, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		store:      store,
		cfg:        cfg,
		logger:     types.OrNoOp(cfg.Logger),
		serializer: storage.NewJSONSerializer(),
	}, nil
}

// Config returns the provider configuration.
func (p *Provider) Config() Config {
	return p.cfg
}

func (p *Provider) key(token string) string {
	return p.cfg.Prefix + token
}

// Resolve returns the session stored under token and extends its lifetime.
// An empty, unknown, expired or unreadable token resolves to nil with no
// error; only Redis failures are returned.
func (p *Provider) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	data, err := p.store.GetAndExpire(ctx, p.key(token), p.cfg.TTL)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := p.serializer.Unmarshal(data, &s); err != nil {
		p.logger.Warn("discarding unreadable session", "error", err)
		return nil, nil
	}
	return &s, nil
}

// Persist writes s under token and resets its TTL.
func (p *Provider) Persist(ctx context.Context, token string, s *Session) error {
	if token == "" {
		return ErrEmptyToken
	}
	if s == nil {
		return ErrNilSession
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	data, err := p.serializer.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return p.store.Set(ctx, p.key(token), data, p.cfg.TTL)
}

// Issue persists s under a new random token and sets the session cookie.
func (p *Provider) Issue(ctx context.Context, w http.ResponseWriter, s *Session) (string, error) {
	token := uuid.NewString()
	if err := p.Persist(ctx, token, s); err != nil {
		return "", err
	}
	http.SetCookie(w, p.cookie(token, int(p.cfg.TTL.Seconds())))
	return token, nil
}

// Destroy deletes the session under token and clears the cookie.
func (p *Provider) Destroy(ctx context.Context, w http.ResponseWriter, token string) error {
	http.SetCookie(w, p.cookie("", -1))
	if token == "" {
		return nil
	}
	return p.store.Delete(ctx, p.key(token))
}

// TokenFromRequest returns the token carried by the session cookie, if any.
func (p *Provider) TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(p.cfg.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (p *Provider) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
