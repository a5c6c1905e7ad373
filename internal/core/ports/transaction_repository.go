package ports

import (
	"context"
	"time"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

// TransactionPatch carries the fields to overwrite on update. Nil fields are
// left untouched.
type TransactionPatch struct {
	Description *string
	PaymentType *domain.PaymentType
	Category    *domain.Category
	Amount      *float64
	Location    *string
	Date        *time.Time
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Description == nil && p.PaymentType == nil && p.Category == nil &&
		p.Amount == nil && p.Location == nil && p.Date == nil
}

// TransactionRepository defines persistence for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)
	// FindByID returns domain.ErrTransactionNotFound for unknown or malformed ids.
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	// ListByUser returns the user's transactions, newest date first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Transaction, error)
	// Update applies patch to the transaction only when it is owned by ownerID
	// and returns the updated record.
	Update(ctx context.Context, id, ownerID string, patch TransactionPatch) (*domain.Transaction, error)
	// Delete removes the transaction only when it is owned by ownerID and
	// returns the removed record.
	Delete(ctx context.Context, id, ownerID string) (*domain.Transaction, error)
}
