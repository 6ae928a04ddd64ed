// Package inventory records purchases and sales against the medicine catalog
// and derives the stock views (expiring, expired, low stock).
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medstore/m/domain"
)

// LotPolicy decides what a sale does to purchase lots.
type LotPolicy string

const (
	// LotPolicyAggregate decrements only the medicine's stock counter.
	LotPolicyAggregate LotPolicy = "aggregate"
	// LotPolicyFIFO also decrements lots, oldest purchase first.
	LotPolicyFIFO LotPolicy = "fifo"
)

// TransactionObserver is notified after a transaction is committed.
type TransactionObserver interface {
	ObserveTransaction(t *domain.Transaction)
}

// Options tune a Service. Zero values fall back to the defaults below.
type Options struct {
	LotPolicy       LotPolicy
	DefaultMinStock int64
	ExpiryAlertDays int
	DefaultGSTRate  decimal.Decimal
	Now             func() time.Time
	Observer        TransactionObserver
}

const (
	defaultMinStock   = 10
	defaultExpiryDays = 30
)

var defaultGSTRate = decimal.NewFromInt(18)

type Service struct {
	store    domain.Store
	log      *zap.Logger
	policy   LotPolicy
	minStock int64
	alert    int
	gstRate  decimal.Decimal
	now      func() time.Time
	observer TransactionObserver
}

func NewService(store domain.Store, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		log:      log.Named("inventory"),
		policy:   opts.LotPolicy,
		minStock: opts.DefaultMinStock,
		alert:    opts.ExpiryAlertDays,
		gstRate:  opts.DefaultGSTRate,
		now:      opts.Now,
		observer: opts.Observer,
	}
	if s.policy == "" {
		s.policy = LotPolicyAggregate
	}
	if s.minStock <= 0 {
		s.minStock = defaultMinStock
	}
	if s.alert <= 0 {
		s.alert = defaultExpiryDays
	}
	if !s.gstRate.IsPositive() {
		s.gstRate = defaultGSTRate
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Policy returns the configured lot policy.
func (s *Service) Policy() LotPolicy {
	return s.policy
}

// Medicine returns one catalog entry.
func (s *Service) Medicine(ctx context.Context, id string) (*domain.Medicine, error) {
	return s.store.Medicines().Get(ctx, id)
}

// Medicines returns the whole catalog.
func (s *Service) Medicines(ctx context.Context) ([]domain.Medicine, error) {
	return s.store.Medicines().List(ctx)
}

// settings returns the stored AppSettings with zero fields filled from the
// service defaults.
func (s *Service) settings(ctx context.Context, repos domain.Repositories) (domain.AppSettings, error) {
	var as domain.AppSettings
	if _, err := repos.State().Get(ctx, domain.StateAppSettings, &as); err != nil {
		return as, fmt.Errorf("load app settings: %w", err)
	}
	if as.DefaultMinStockLevel <= 0 {
		as.DefaultMinStockLevel = s.minStock
	}
	if as.ExpiryAlertDays <= 0 {
		as.ExpiryAlertDays = s.alert
	}
	if !as.DefaultGSTRate.IsPositive() {
		as.DefaultGSTRate = s.gstRate
	}
	return as, nil
}

// Settings returns the stored AppSettings merged with the service defaults.
func (s *Service) Settings(ctx context.Context) (domain.AppSettings, error) {
	return s.settings(ctx, s.store)
}

func (s *Service) observe(t *domain.Transaction) {
	if s.observer != nil {
		s.observer.ObserveTransaction(t)
	}
}
