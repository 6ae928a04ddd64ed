// Package sqlstore implements the repositories on sqlx, for SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"medstore/m/domain"
)

// Timestamps are stored as fixed-width UTC text so that string order is time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a domain.Store over a sqlx database.
type Store struct {
	db *sqlx.DB
}

var _ domain.Store = (*Store)(nil)

// New wraps db. The schema must already exist (see migrations.Run).
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Medicines() domain.MedicineRepository       { return &medicineRepo{q: s.db} }
func (s *Store) Transactions() domain.TransactionRepository { return &transactionRepo{q: s.db} }
func (s *Store) Suppliers() domain.SupplierRepository       { return &supplierRepo{q: s.db} }
func (s *Store) State() domain.StateRepository              { return &stateRepo{q: s.db} }
func (s *Store) Users() domain.UserRepository               { return &userRepo{q: s.db} }

// WithinTx runs fn inside one database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(txRepos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txRepos struct {
	q sqlx.ExtContext
}

func (t txRepos) Medicines() domain.MedicineRepository       { return &medicineRepo{q: t.q} }
func (t txRepos) Transactions() domain.TransactionRepository { return &transactionRepo{q: t.q} }
func (t txRepos) Suppliers() domain.SupplierRepository       { return &supplierRepo{q: t.q} }
func (t txRepos) State() domain.StateRepository              { return &stateRepo{q: t.q} }

// exec rebinds ? placeholders for the active driver.
func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timestampLayout, s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(domain.DateLayout, s)
}
