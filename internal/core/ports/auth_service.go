package ports

import (
	"context"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Username       string
	Name           string
	Password       string
	Gender         string
	ProfilePicture string // optional; generated from gender when empty
}

// AuthService verifies credentials and manages login sessions.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, *domain.Session, error)
	Login(ctx context.Context, username, password string) (*domain.User, *domain.Session, error)
	// ResolveSession returns domain.ErrUnauthorized when the session is
	// missing, expired or bound to a user that no longer exists.
	ResolveSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error)
	Logout(ctx context.Context, sessionID string) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
}
