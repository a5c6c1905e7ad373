package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

type ctxKey struct{}

// Context is the per-request view of the caller's session. Resolvers may run
// concurrently, so access is guarded.
type Context struct {
	m *Manager
	w http.ResponseWriter

	mu      sync.RWMutex
	session *domain.Session
	user    *domain.User
}

// WithContext stores sc in ctx.
func WithContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// FromContext returns the request's session context, or nil outside a request.
// All methods are safe on a nil *Context and behave as anonymous.
func FromContext(ctx context.Context) *Context {
	sc, _ := ctx.Value(ctxKey{}).(*Context)
	return sc
}

// User returns the authenticated user or nil.
func (c *Context) User() *domain.User {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// UserID returns the authenticated user's id or "".
func (c *Context) UserID() string {
	if u := c.User(); u != nil {
		return u.ID
	}
	return ""
}

// Login binds sess to this request and sends the session cookie.
func (c *Context) Login(sess *domain.Session, user *domain.User) error {
	if c == nil {
		return fmt.Errorf("session: no request context")
	}
	token, err := c.m.issue(sess)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session, c.user = sess, user
	c.mu.Unlock()

	c.m.setCookie(c.w, token, sess.ExpiresAt)
	return nil
}

// Logout ends the session server-side and clears the cookie. Calling it
// without a session only clears the cookie.
func (c *Context) Logout(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	sess := c.session
	c.session, c.user = nil, nil
	c.mu.Unlock()

	if sess != nil {
		if err := c.m.store.Logout(ctx, sess.ID); err != nil {
			return err
		}
	}
	c.m.clearCookie(c.w)
	return nil
}
