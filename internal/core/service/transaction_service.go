package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
	"github.com/expense-tracker/graphql-api/internal/core/ports"
	"github.com/expense-tracker/graphql-api/internal/metrics"
)

type TransactionService struct {
	repo   ports.TransactionRepository
	cache  ports.StatsCache
	logger zerolog.Logger

	// stale holds users whose last cache invalidation failed. Their cached
	// statistics are bypassed until an invalidation succeeds.
	mu    sync.Mutex
	stale map[string]struct{}
}

// NewTransactionService wires the service. A nil cache disables statistics caching.
func NewTransactionService(repo ports.TransactionRepository, cache ports.StatsCache, logger zerolog.Logger) *TransactionService {
	if cache == nil {
		cache = noopStatsCache{}
	}
	return &TransactionService{repo: repo, cache: cache, logger: logger, stale: make(map[string]struct{})}
}

// List returns the caller's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	txs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	return txs, nil
}

// Get fetches a transaction by id. Ownership is not checked.
func (s *TransactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrTransactionNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// Create stores a new transaction owned by userID.
func (s *TransactionService) Create(ctx context.Context, userID string, in ports.CreateTransactionInput) (*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if blank(in.Description) {
		return nil, domain.NewValidationError("description is required")
	}
	pt := domain.PaymentType(in.PaymentType)
	if !pt.Valid() {
		return nil, domain.NewValidationError("paymentType must be one of: cash card")
	}
	cat := domain.Category(in.Category)
	if !cat.Valid() {
		return nil, domain.NewValidationError("category must be one of: saving expense investment")
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	location := domain.DefaultLocation
	if in.Location != nil && !blank(*in.Location) {
		location = *in.Location
	}

	created, err := s.repo.Create(ctx, &domain.Transaction{
		UserID:      userID,
		Description: in.Description,
		PaymentType: pt,
		Category:    cat,
		Amount:      in.Amount,
		Location:    location,
		Date:        date,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create transaction")
		return nil, err
	}

	metrics.TransactionsCreatedTotal.WithLabelValues(string(cat)).Inc()
	s.invalidateStats(ctx, userID)
	s.logger.Info().Str("transaction_id", created.ID).Str("user_id", userID).Msg("transaction created")
	return created, nil
}

// Update overwrites the supplied fields of a transaction owned by userID.
// Transactions owned by someone else are reported as not found.
func (s *TransactionService) Update(ctx context.Context, userID string, in ports.UpdateTransactionInput) (*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if blank(in.TransactionID) {
		return nil, domain.NewValidationError("transactionId is required")
	}

	patch, err := buildPatch(in)
	if err != nil {
		return nil, err
	}

	if patch.Empty() {
		tx, err := s.repo.FindByID(ctx, in.TransactionID)
		if err != nil {
			return nil, err
		}
		if tx.UserID != userID {
			return nil, domain.ErrTransactionNotFound
		}
		return tx, nil
	}

	updated, err := s.repo.Update(ctx, in.TransactionID, userID, patch)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, userID)
	s.logger.Info().Str("transaction_id", updated.ID).Str("user_id", userID).Msg("transaction updated")
	return updated, nil
}

// Delete removes a transaction owned by userID and returns it.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if blank(id) {
		return nil, domain.ErrTransactionNotFound
	}

	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, userID)
	s.logger.Info().Str("transaction_id", deleted.ID).Str("user_id", userID).Msg("transaction deleted")
	return deleted, nil
}

// CategoryStatistics sums the caller's amounts per category. Categories appear
// in the order they are first seen in List.
func (s *TransactionService) CategoryStatistics(ctx context.Context, userID string) ([]domain.CategoryStatistic, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	if !s.cacheTrusted(ctx, userID) {
		metrics.StatsCacheTotal.WithLabelValues("bypass").Inc()
		return s.computeStats(ctx, userID)
	}

	cached, gen, ok, err := s.cache.Get(ctx, userID)
	switch {
	case err != nil:
		metrics.StatsCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("stats cache read failed, computing")
		return s.computeStats(ctx, userID)
	case ok:
		metrics.StatsCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.StatsCacheTotal.WithLabelValues("miss").Inc()

	stats, err := s.computeStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A write after the generation was read advances it, so this entry is
	// never served once it is out of date.
	if err := s.cache.Set(ctx, userID, gen, stats); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("stats cache write failed")
	}
	return stats, nil
}

func (s *TransactionService) computeStats(ctx context.Context, userID string) ([]domain.CategoryStatistic, error) {
	txs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sumByCategory(txs), nil
}

func (s *TransactionService) invalidateStats(ctx context.Context, userID string) {
	err := s.cache.Invalidate(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stale[userID] = struct{}{}
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("stats cache invalidation failed, bypassing cache")
		return
	}
	delete(s.stale, userID)
}

// cacheTrusted reports whether the user's cached statistics may be read. A
// user marked stale gets one more invalidation attempt first.
func (s *TransactionService) cacheTrusted(ctx context.Context, userID string) bool {
	s.mu.Lock()
	_, stale := s.stale[userID]
	s.mu.Unlock()
	if !stale {
		return true
	}

	s.invalidateStats(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, stale = s.stale[userID]
	return !stale
}

func buildPatch(in ports.UpdateTransactionInput) (ports.TransactionPatch, error) {
	var p ports.TransactionPatch

	if in.Description != nil {
		if blank(*in.Description) {
			return p, domain.NewValidationError("description cannot be empty")
		}
		p.Description = in.Description
	}
	if in.PaymentType != nil {
		pt := domain.PaymentType(*in.PaymentType)
		if !pt.Valid() {
			return p, domain.NewValidationError("paymentType must be one of: cash card")
		}
		p.PaymentType = &pt
	}
	if in.Category != nil {
		cat := domain.Category(*in.Category)
		if !cat.Valid() {
			return p, domain.NewValidationError("category must be one of: saving expense investment")
		}
		p.Category = &cat
	}
	if in.Amount != nil {
		p.Amount = in.Amount
	}
	if in.Location != nil {
		loc := *in.Location
		if blank(loc) {
			loc = domain.DefaultLocation
		}
		p.Location = &loc
	}
	if in.Date != nil {
		d, err := domain.ParseDate(*in.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

func sumByCategory(txs []*domain.Transaction) []domain.CategoryStatistic {
	order := make([]domain.Category, 0, 3)
	totals := make(map[domain.Category]decimal.Decimal, 3)
	for _, tx := range txs {
		sum, seen := totals[tx.Category]
		if !seen {
			order = append(order, tx.Category)
		}
		totals[tx.Category] = sum.Add(decimal.NewFromFloat(tx.Amount))
	}

	out := make([]domain.CategoryStatistic, 0, len(order))
	for _, cat := range order {
		out = append(out, domain.CategoryStatistic{
			Category:    cat,
			TotalAmount: totals[cat].InexactFloat64(),
		})
	}
	return out
}

type noopStatsCache struct{}

func (noopStatsCache) Get(context.Context, string) ([]domain.CategoryStatistic, int64, bool, error) {
	return nil, 0, false, nil
}
func (noopStatsCache) Set(context.Context, string, int64, []domain.CategoryStatistic) error {
	return nil
}
func (noopStatsCache) Invalidate(context.Context, string) error { return nil }
