package domain

import (
	"context"
	"time"
)

// MedicineRepository persists medicines together with their lots.
type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	// Update saves the medicine fields and replaces its lots.
	Update(ctx context.Context, m *Medicine) error
	Get(ctx context.Context, id string) (*Medicine, error)
	FindByName(ctx context.Context, name string) (*Medicine, error)
	List(ctx context.Context) ([]Medicine, error)
}

// TransactionRepository is append-only.
type TransactionRepository interface {
	Append(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	// List returns transactions dated within [from, to]. Zero bounds are open.
	List(ctx context.Context, from, to time.Time) ([]Transaction, error)
}

type SupplierRepository interface {
	Create(ctx context.Context, s *Supplier) error
	Get(ctx context.Context, id string) (*Supplier, error)
	// FindByName matches case-insensitively.
	FindByName(ctx context.Context, name string) (*Supplier, error)
	List(ctx context.Context) ([]Supplier, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, hashed string) error
	CountByRole(ctx context.Context, role string) (int, error)
}

// StateRepository stores JSON documents under the StateXxx keys.
type StateRepository interface {
	// Get decodes the document into dst and reports whether it existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, value any) error
}

// Repositories groups the repositories that take part in a unit of work.
type Repositories interface {
	Medicines() MedicineRepository
	Transactions() TransactionRepository
	Suppliers() SupplierRepository
	State() StateRepository
}

// Store is the root persistence handle.
type Store interface {
	Repositories
	Users() UserRepository
	// WithinTx runs fn against repositories sharing one transaction.
	// Nothing fn wrote survives when it returns an error.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
