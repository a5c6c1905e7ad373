package ports

import (
	"context"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// CreateTransactionInput is the payload for a new transaction. The owner is
// never part of it; the service uses the caller's identity.
type CreateTransactionInput struct {
	Description string
	PaymentType string
	Category    string
	Amount      float64
	Date        string
	Location    *string
}

// UpdateTransactionInput targets one transaction; nil fields stay unchanged.
type UpdateTransactionInput struct {
	TransactionID string
	Description   *string
	PaymentType   *string
	Category      *string
	Amount        *float64
	Location      *string
	Date          *string
}

// TransactionService defines use-case operations for transactions. userID is
// the caller's identity; an empty userID means no active session.
type TransactionService interface {
	List(ctx context.Context, userID string) ([]*domain.Transaction, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	Create(ctx context.Context, userID string, in CreateTransactionInput) (*domain.Transaction, error)
	Update(ctx context.Context, userID string, in UpdateTransactionInput) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, id string) (*domain.Transaction, error)
	CategoryStatistics(ctx context.Context, userID string) ([]domain.CategoryStatistic, error)
}

// StatsCache caches per-user category statistics. Each user has a generation
// counter that Invalidate advances; entries are stored under the generation
// they were computed for, so a result computed before a write is never read
// after it.
type StatsCache interface {
	// Get returns the user's current generation and, when ok, the statistics
	// stored for it.
	Get(ctx context.Context, userID string) (stats []domain.CategoryStatistic, gen int64, ok bool, err error)
	// Set stores stats for generation gen.
	Set(ctx context.Context, userID string, gen int64, stats []domain.CategoryStatistic) error
	Invalidate(ctx context.Context, userID string) error
}
