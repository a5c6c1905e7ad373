// Package session binds a login session to a browser cookie. The cookie holds
// a signed reference to a server-side session record; the record decides
// whether the session is still valid.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// CookieName is the name of the session cookie.
const CookieName = "expense_tracker.sid"

var errInvalidToken = errors.New("invalid session token")

// Store is the part of the authenticator the session layer depends on.
type Store interface {
	ResolveSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
	Logout(ctx context.Context, sessionID string) error
}

type Options struct {
	Secret string
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Manager issues and verifies session cookies.
type Manager struct {
	store  Store
	secret []byte
	secure bool
	log    zerolog.Logger
	now    func() time.Time
}

func NewManager(store Store, opts Options, log zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		secret: []byte(opts.Secret),
		secure: opts.Secure,
		log:    log,
		now:    time.Now,
	}
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (m *Manager) issue(sess *domain.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// parse verifies the token and returns the session id and subject it carries.
func (m *Manager) parse(raw string) (sid, sub string, err error) {
	var c claims
	tkn, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid || c.SessionID == "" {
		return "", "", errInvalidToken
	}
	return c.SessionID, c.Subject, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	maxAge := int(expires.Sub(m.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
