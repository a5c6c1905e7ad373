package session

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// Middleware resolves the session cookie and attaches a *Context to the
// request context. A bad or stale cookie makes the request anonymous and
// clears the cookie; it never fails the request.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			sc := &Context{m: m, w: c.Response()}

			if ck, err := c.Cookie(CookieName); err == nil && ck.Value != "" {
				m.resolve(c, sc, ck.Value)
			}

			c.SetRequest(req.WithContext(WithContext(req.Context(), sc)))
			return next(c)
		}
	}
}

func (m *Manager) resolve(c echo.Context, sc *Context, raw string) {
	sid, sub, err := m.parse(raw)
	if err != nil {
		m.log.Debug().Str("request_id", requestID(c)).Msg("discarding invalid session cookie")
		m.clearCookie(c.Response())
		return
	}

	sess, user, err := m.store.ResolveSession(c.Request().Context(), sid)
	switch {
	case err == nil && user.ID == sub:
		sc.session, sc.user = sess, user
	case err == nil, errors.Is(err, domain.ErrUnauthorized):
		m.clearCookie(c.Response())
	default:
		// Store failure: stay anonymous for this request but keep the cookie.
		m.log.Error().Err(err).Str("request_id", requestID(c)).Msg("failed to resolve session")
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
