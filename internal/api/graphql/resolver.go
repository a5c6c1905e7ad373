// Package graphql serves the expense tracker API as a GraphQL schema over
// echo.
package graphql

import (
	"context"
	"errors"

	graphqlgo "github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog"

	"github.com/expense-tracker/graphql-api/internal/api/session"
	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
)

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	auth     ports.AuthService
	txs      ports.TransactionService
	validate *inputValidator
	log      zerolog.Logger
}

func NewResolver(auth ports.AuthService, txs ports.TransactionService, log zerolog.Logger) *Resolver {
	return &Resolver{
		auth:     auth,
		txs:      txs,
		validate: newInputValidator(),
		log:      log,
	}
}

// ── Users & authentication ────────────────────────────────────────────────────

func (r *Resolver) SignUp(ctx context.Context, args struct{ Input signUpInput }) (*userResolver, error) {
	if err := r.validate.Validate(args.Input); err != nil {
		return nil, present(ctx, r.log, "signUp", err)
	}
	user, sess, err := r.auth.Register(ctx, args.Input.toPort())
	if err != nil {
		return nil, present(ctx, r.log, "signUp", err)
	}
	if err := session.FromContext(ctx).Login(sess, user); err != nil {
		return nil, present(ctx, r.log, "signUp", err)
	}
	return r.user(user), nil
}

func (r *Resolver) Login(ctx context.Context, args struct{ Input loginInput }) (*userResolver, error) {
	if err := r.validate.Validate(args.Input); err != nil {
		return nil, present(ctx, r.log, "login", err)
	}
	user, sess, err := r.auth.Login(ctx, args.Input.Username, args.Input.Password)
	if err != nil {
		return nil, present(ctx, r.log, "login", err)
	}
	if err := session.FromContext(ctx).Login(sess, user); err != nil {
		return nil, present(ctx, r.log, "login", err)
	}
	return r.user(user), nil
}

// Logout succeeds with or without an active session.
func (r *Resolver) Logout(ctx context.Context) (*logoutResponse, error) {
	if err := session.FromContext(ctx).Logout(ctx); err != nil {
		return nil, present(ctx, r.log, "logout", err)
	}
	return &logoutResponse{message: "Logged out successfully"}, nil
}

func (r *Resolver) AuthUser(ctx context.Context) (*userResolver, error) {
	user := session.FromContext(ctx).User()
	if user == nil {
		return nil, nil
	}
	return r.user(user), nil
}

// User looks up any user by id; an unknown id resolves to null.
func (r *Resolver) User(ctx context.Context, args struct{ UserID graphqlgo.ID }) (*userResolver, error) {
	user, err := r.auth.GetUser(ctx, string(args.UserID))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, present(ctx, r.log, "user", err)
	}
	return r.user(user), nil
}

// ── Transactions ──────────────────────────────────────────────────────────────

func (r *Resolver) Transactions(ctx context.Context) (*[]*transactionResolver, error) {
	txs, err := r.txs.List(ctx, session.FromContext(ctx).UserID())
	if err != nil {
		return nil, present(ctx, r.log, "transactions", err)
	}
	return r.transactionList(txs), nil
}

// Transaction is readable by anyone who knows the id; an unknown id resolves
// to null.
func (r *Resolver) Transaction(ctx context.Context, args struct{ TransactionID graphqlgo.ID }) (*transactionResolver, error) {
	tx, err := r.txs.Get(ctx, string(args.TransactionID))
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, present(ctx, r.log, "transaction", err)
	}
	return r.transaction(tx), nil
}

func (r *Resolver) CategoryStatistics(ctx context.Context) (*[]*categoryStatisticsResolver, error) {
	stats, err := r.txs.CategoryStatistics(ctx, session.FromContext(ctx).UserID())
	if err != nil {
		return nil, present(ctx, r.log, "categoryStatistics", err)
	}
	out := make([]*categoryStatisticsResolver, 0, len(stats))
	for _, s := range stats {
		out = append(out, &categoryStatisticsResolver{s: s})
	}
	return &out, nil
}

func (r *Resolver) CreateTransaction(ctx context.Context, args struct{ Input createTransactionInput }) (*transactionResolver, error) {
	userID := session.FromContext(ctx).UserID()
	if userID == "" {
		return nil, present(ctx, r.log, "createTransaction", domain.ErrUnauthorized)
	}
	if err := r.validate.Validate(args.Input); err != nil {
		return nil, present(ctx, r.log, "createTransaction", err)
	}
	tx, err := r.txs.Create(ctx, userID, args.Input.toPort())
	if err != nil {
		return nil, present(ctx, r.log, "createTransaction", err)
	}
	return r.transaction(tx), nil
}

func (r *Resolver) UpdateTransaction(ctx context.Context, args struct{ Input updateTransactionInput }) (*transactionResolver, error) {
	userID := session.FromContext(ctx).UserID()
	if userID == "" {
		return nil, present(ctx, r.log, "updateTransaction", domain.ErrUnauthorized)
	}
	if err := r.validate.Validate(args.Input); err != nil {
		return nil, present(ctx, r.log, "updateTransaction", err)
	}
	tx, err := r.txs.Update(ctx, userID, args.Input.toPort())
	if err != nil {
		return nil, present(ctx, r.log, "updateTransaction", err)
	}
	return r.transaction(tx), nil
}

func (r *Resolver) DeleteTransaction(ctx context.Context, args struct{ TransactionID graphqlgo.ID }) (*transactionResolver, error) {
	tx, err := r.txs.Delete(ctx, session.FromContext(ctx).UserID(), string(args.TransactionID))
	if err != nil {
		return nil, present(ctx, r.log, "deleteTransaction", err)
	}
	return r.transaction(tx), nil
}

func (r *Resolver) user(u *domain.User) *userResolver {
	return &userResolver{u: u, root: r}
}

func (r *Resolver) transaction(t *domain.Transaction) *transactionResolver {
	return &transactionResolver{t: t, root: r}
}

func (r *Resolver) transactionList(txs []*domain.Transaction) *[]*transactionResolver {
	out := make([]*transactionResolver, 0, len(txs))
	for _, t := range txs {
		out = append(out, r.transaction(t))
	}
	return &out
}

type logoutResponse struct {
	message string
}

func (l *logoutResponse) Message() string { return l.message }
