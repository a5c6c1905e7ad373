package ports

import (
	"context"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// SessionRepository stores server-side session records.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindByID returns domain.ErrSessionNotFound when no record exists.
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	// Delete is a no-op when the record is already gone.
	Delete(ctx context.Context, id string) error
}
