package domain

import (
	"strconv"
	"strings"
	"time"
)

// PaymentType is how a transaction was paid.
type PaymentType string

const (
	PaymentCash PaymentType = "cash"
	PaymentCard PaymentType = "card"
)

func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

// Category classifies a transaction for aggregation.
type Category string

const (
	CategorySaving     Category = "saving"
	CategoryExpense    Category = "expense"
	CategoryInvestment Category = "investment"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySaving, CategoryExpense, CategoryInvestment:
		return true
	}
	return false
}

// DefaultLocation is stored when a transaction is created without a location.
const DefaultLocation = "Unknown"

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// Transaction is one financial event owned by exactly one user.
type Transaction struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Description string      `json:"description"`
	PaymentType PaymentType `json:"payment_type"`
	Category    Category    `json:"category"`
	Amount      float64     `json:"amount"`
	Location    string      `json:"location"`
	Date        time.Time   `json:"date"`
}

// CategoryStatistic is the summed amount of one category.
type CategoryStatistic struct {
	Category    Category `json:"category"`
	TotalAmount float64  `json:"total_amount"`
}

// ParseDate accepts YYYY-MM-DD, RFC 3339 or an epoch-milliseconds string and
// returns the calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, NewValidationError("date is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return TruncateDate(t), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TruncateDate(time.UnixMilli(ms)), nil
	}
	return time.Time{}, NewValidationError("date must be YYYY-MM-DD")
}

// TruncateDate drops the time of day in UTC.
func TruncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
