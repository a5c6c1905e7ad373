package graphql

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/metrics"
)

// publicError is what a resolver hands back to graphql-go: only Error() is
// rendered, the cause stays server-side.
type publicError struct {
	msg   string
	cause error
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.cause }

// failures maps a resolver field to the message shown for unexpected errors.
var failures = map[string]string{
	"signUp":             "Error signing up",
	"login":              "Error logging in",
	"logout":             "Error logging out",
	"authUser":           "Error getting authenticated user",
	"user":               "Error getting user",
	"transactions":       "Error getting transactions",
	"transaction":        "Error getting transaction",
	"categoryStatistics": "Error getting category statistics",
	"createTransaction":  "Error creating transaction",
	"updateTransaction":  "Error updating transaction",
	"deleteTransaction":  "Error deleting transaction",
	"User.transactions":  "Error getting transactions",
	"Transaction.user":   "Error getting user",
}

// present converts err into the message a caller may see. Known domain errors
// keep a fixed message; anything else is logged and replaced.
func present(ctx context.Context, log zerolog.Logger, field string, err error) error {
	metrics.GraphQLErrorsTotal.WithLabelValues(field).Inc()

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return &publicError{msg: ve.Message, cause: err}
	case errors.Is(err, domain.ErrUserExists):
		return &publicError{msg: "User already exists", cause: err}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return &publicError{msg: "Invalid username or password", cause: err}
	case errors.Is(err, domain.ErrUnauthorized):
		return &publicError{msg: "Unauthorized", cause: err}
	case errors.Is(err, domain.ErrTransactionNotFound):
		return &publicError{msg: "Transaction not found", cause: err}
	case errors.Is(err, domain.ErrUserNotFound):
		return &publicError{msg: "User not found", cause: err}
	}

	log.Error().
		Err(err).
		Str("field", field).
		Str("request_id", requestIDFrom(ctx)).
		Msg("resolver failed")

	msg, ok := failures[field]
	if !ok {
		msg = "Internal server error"
	}
	return &publicError{msg: msg, cause: err}
}
