// Package reqctx assembles the per-request context handed to every resolver:
// fresh batch loaders, the resolved session, and the process-wide list cache
// and pub/sub handle.
package reqctx

import (
	"context"
	"net/http"
	"net/url"

	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/loader"
	"github.com/huykn/course-marketplace/pubsub"
	"github.com/huykn/course-marketplace/ratelimit"
	"github.com/huykn/course-marketplace/session"
	"github.com/huykn/course-marketplace/storage"
	"github.com/huykn/course-marketplace/store"
	"github.com/huykn/course-marketplace/types"
)

// Context is built once per inbound request and discarded with it.
// Loaders must never be shared with another request.
type Context struct {
	Store        *storage.RedisStore
	Session      *session.Session
	SessionToken string
	URL          *url.URL
	Request      *http.Request
	Response     http.ResponseWriter
	Loaders      *loader.Loaders
	Lists        *cache.ListCache
	PubSub       *pubsub.PubSub
	Admission    ratelimit.Decision

	sessions *session.Provider
}

// UserID returns the signed-in user, or "" for an anonymous request.
func (c *Context) UserID() string {
	if !c.Session.Authenticated() {
		return ""
	}
	return c.Session.UserID
}

// SignIn binds the request's session to userID, issuing a token when the
// request has none.
func (c *Context) SignIn(ctx context.Context, userID string) error {
	if c.Session == nil {
		c.Session = &session.Session{}
	}
	c.Session.UserID = userID
	if c.SessionToken != "" {
		return c.sessions.Persist(ctx, c.SessionToken, c.Session)
	}
	token, err := c.sessions.Issue(ctx, c.Response, c.Session)
	if err != nil {
		return err
	}
	c.SessionToken = token
	return nil
}

// SignOut destroys the request's session.
func (c *Context) SignOut(ctx context.Context) error {
	err := c.sessions.Destroy(ctx, c.Response, c.SessionToken)
	c.Session = nil
	c.SessionToken = ""
	return err
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying rc.
func NewContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request context attached by Middleware.
func FromContext(ctx context.Context) (*Context, bool) {
	rc, ok := ctx.Value(contextKey{}).(*Context)
	return rc, ok
}

// Assembler wires already-constructed process-wide collaborators into a
// Context per request.
type Assembler struct {
	Shared   *storage.RedisStore
	Backing  *store.Store
	Lists    *cache.ListCache
	PubSub   *pubsub.PubSub
	Sessions *session.Provider
	Loader   loader.Config
	Logger   types.Logger
}

// Build returns a Context with fresh loaders bound to r's context. It does
// no I/O.
func (a *Assembler) Build(r *http.Request, w http.ResponseWriter, sess *session.Session, token string, admission ratelimit.Decision) *Context {
	return &Context{
		Store:        a.Shared,
		Session:      sess,
		SessionToken: token,
		URL:          r.URL,
		Request:      r,
		Response:     w,
		Loaders:      loader.NewLoaders(r.Context(), a.Backing, a.Loader),
		Lists:        a.Lists,
		PubSub:       a.PubSub,
		Admission:    admission,
		sessions:     a.Sessions,
	}
}

// Middleware resolves the session, builds the Context and attaches it to
// the request. A session store failure degrades to an anonymous request.
func (a *Assembler) Middleware(next http.Handler) http.Handler {
	logger := types.OrNoOp(a.Logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.Sessions.TokenFromRequest(r)
		sess, err := a.Sessions.Resolve(r.Context(), token)
		if err != nil {
			logger.Warn("session lookup failed, continuing anonymous", "path", r.URL.Path, "error", err)
			sess = nil
		}
		if sess == nil {
			token = ""
		}

		admission, _ := ratelimit.DecisionFromContext(r.Context())
		rc := a.Build(r, w, sess, token, admission)
		r = r.WithContext(NewContext(r.Context(), rc))
		rc.Request = r
		next.ServeHTTP(w, r)
	})
}
