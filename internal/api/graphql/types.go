package graphql

import (
	"context"

	graphqlgo "github.com/graph-gophers/graphql-go"

	"github.com/expense-tracker/graphql-api/internal/api/session"
	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

type userResolver struct {
	u    *domain.User
	root *Resolver
}

func (r *userResolver) ID() graphqlgo.ID { return graphqlgo.ID(r.u.ID) }
func (r *userResolver) Username() string { return r.u.Username }
func (r *userResolver) Name() string     { return r.u.Name }
func (r *userResolver) Gender() string   { return string(r.u.Gender) }

func (r *userResolver) ProfilePicture() *string {
	if r.u.ProfilePicture == "" {
		return nil
	}
	return &r.u.ProfilePicture
}

// Transactions lists the user's transactions for the user themselves and
// resolves to null for anyone else.
func (r *userResolver) Transactions(ctx context.Context) (*[]*transactionResolver, error) {
	if session.FromContext(ctx).UserID() != r.u.ID {
		return nil, nil
	}
	txs, err := r.root.txs.List(ctx, r.u.ID)
	if err != nil {
		return nil, present(ctx, r.root.log, "User.transactions", err)
	}
	return r.root.transactionList(txs), nil
}

type transactionResolver struct {
	t    *domain.Transaction
	root *Resolver
}

func (r *transactionResolver) ID() graphqlgo.ID     { return graphqlgo.ID(r.t.ID) }
func (r *transactionResolver) UserID() graphqlgo.ID { return graphqlgo.ID(r.t.UserID) }
func (r *transactionResolver) Description() string  { return r.t.Description }
func (r *transactionResolver) PaymentType() string  { return string(r.t.PaymentType) }
func (r *transactionResolver) Category() string     { return string(r.t.Category) }
func (r *transactionResolver) Amount() float64      { return r.t.Amount }
func (r *transactionResolver) Date() string         { return r.t.Date.Format(domain.DateLayout) }

func (r *transactionResolver) Location() *string {
	if r.t.Location == "" {
		return nil
	}
	return &r.t.Location
}

func (r *transactionResolver) User(ctx context.Context) (*userResolver, error) {
	u, err := r.root.auth.GetUser(ctx, r.t.UserID)
	if err != nil {
		return nil, present(ctx, r.root.log, "Transaction.user", err)
	}
	return r.root.user(u), nil
}

type categoryStatisticsResolver struct {
	s domain.CategoryStatistic
}

func (r *categoryStatisticsResolver) Category() string     { return string(r.s.Category) }
func (r *categoryStatisticsResolver) TotalAmount() float64 { return r.s.TotalAmount }
