// Package memory keeps every repository in process memory.
// It backs tests and the demo mode.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"medstore/m/domain"
)

type data struct {
	medicines    map[string]domain.Medicine
	transactions []domain.Transaction
	suppliers    map[string]domain.Supplier
	users        map[string]domain.User
	state        map[string][]byte
}

func (d *data) clone() *data {
	c := &data{
		medicines:    make(map[string]domain.Medicine, len(d.medicines)),
		transactions: slices.Clone(d.transactions),
		suppliers:    make(map[string]domain.Supplier, len(d.suppliers)),
		users:        make(map[string]domain.User, len(d.users)),
		state:        make(map[string][]byte, len(d.state)),
	}
	for k, v := range d.medicines {
		c.medicines[k] = cloneMedicine(v)
	}
	for k, v := range d.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.state {
		c.state[k] = slices.Clone(v)
	}
	return c
}

// Store is a domain.Store held in maps guarded by one RWMutex.
type Store struct {
	mu   sync.RWMutex
	data *data
}

var _ domain.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: &data{
		medicines: make(map[string]domain.Medicine),
		suppliers: make(map[string]domain.Supplier),
		users:     make(map[string]domain.User),
		state:     make(map[string][]byte),
	}}
}

// repos implements every repository over s.data. When held is true the
// caller already owns the write lock.
type repos struct {
	s    *Store
	held bool
}

func (s *Store) Medicines() domain.MedicineRepository       { return &medicineRepo{repos{s: s}} }
func (s *Store) Transactions() domain.TransactionRepository { return &transactionRepo{repos{s: s}} }
func (s *Store) Suppliers() domain.SupplierRepository       { return &supplierRepo{repos{s: s}} }
func (s *Store) State() domain.StateRepository              { return &stateRepo{repos{s: s}} }
func (s *Store) Users() domain.UserRepository               { return &userRepo{repos{s: s}} }

// WithinTx holds the write lock for the whole of fn and restores the
// previous contents if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(txRepos{repos{s: s, held: true}}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type txRepos struct{ r repos }

func (t txRepos) Medicines() domain.MedicineRepository       { return &medicineRepo{t.r} }
func (t txRepos) Transactions() domain.TransactionRepository { return &transactionRepo{t.r} }
func (t txRepos) Suppliers() domain.SupplierRepository       { return &supplierRepo{t.r} }
func (t txRepos) State() domain.StateRepository              { return &stateRepo{t.r} }

func (r repos) rlock() func() {
	if r.held {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r repos) lock() func() {
	if r.held {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func cloneMedicine(m domain.Medicine) domain.Medicine {
	m.Lots = slices.Clone(m.Lots)
	return m
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	t.Items = slices.Clone(t.Items)
	t.PrescriptionFiles = slices.Clone(t.PrescriptionFiles)
	if t.Customer != nil {
		c := *t.Customer
		t.Customer = &c
	}
	if t.Supplier != nil {
		s := *t.Supplier
		t.Supplier = &s
	}
	return t
}

type medicineRepo struct{ repos }

func (r *medicineRepo) Create(_ context.Context, m *domain.Medicine) error {
	defer r.lock()()
	if _, ok := r.s.data.medicines[m.ID]; ok {
		return fmt.Errorf("medicine %s: %w", m.ID, domain.ErrAlreadyExists)
	}
	r.s.data.medicines[m.ID] = cloneMedicine(*m)
	return nil
}

func (r *medicineRepo) Update(_ context.Context, m *domain.Medicine) error {
	defer r.lock()()
	if _, ok := r.s.data.medicines[m.ID]; !ok {
		return fmt.Errorf("medicine %s: %w", m.ID, domain.ErrNotFound)
	}
	r.s.data.medicines[m.ID] = cloneMedicine(*m)
	return nil
}

func (r *medicineRepo) Get(_ context.Context, id string) (*domain.Medicine, error) {
	defer r.rlock()()
	m, ok := r.s.data.medicines[id]
	if !ok {
		return nil, fmt.Errorf("medicine %s: %w", id, domain.ErrNotFound)
	}
	c := cloneMedicine(m)
	return &c, nil
}

func (r *medicineRepo) FindByName(_ context.Context, name string) (*domain.Medicine, error) {
	defer r.rlock()()
	for _, m := range r.s.data.medicines {
		if domain.SameName(m.Name, name) {
			c := cloneMedicine(m)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("medicine %q: %w", name, domain.ErrNotFound)
}

func (r *medicineRepo) List(_ context.Context) ([]domain.Medicine, error) {
	defer r.rlock()()
	out := make([]domain.Medicine, 0, len(r.s.data.medicines))
	for _, m := range r.s.data.medicines {
		out = append(out, cloneMedicine(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

type transactionRepo struct{ repos }

func (r *transactionRepo) Append(_ context.Context, t *domain.Transaction) error {
	defer r.lock()()
	for _, existing := range r.s.data.transactions {
		if existing.ID == t.ID {
			return fmt.Errorf("transaction %s: %w", t.ID, domain.ErrAlreadyExists)
		}
	}
	r.s.data.transactions = append(r.s.data.transactions, cloneTransaction(*t))
	return nil
}

func (r *transactionRepo) Get(_ context.Context, id string) (*domain.Transaction, error) {
	defer r.rlock()()
	for _, t := range r.s.data.transactions {
		if t.ID == id {
			c := cloneTransaction(t)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
}

func (r *transactionRepo) List(_ context.Context, from, to time.Time) ([]domain.Transaction, error) {
	defer r.rlock()()
	out := make([]domain.Transaction, 0, len(r.s.data.transactions))
	for _, t := range r.s.data.transactions {
		if !from.IsZero() && t.Date.Before(from) {
			continue
		}
		if !to.IsZero() && t.Date.After(to) {
			continue
		}
		out = append(out, cloneTransaction(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type supplierRepo struct{ repos }

func (r *supplierRepo) Create(_ context.Context, s *domain.Supplier) error {
	defer r.lock()()
	for _, existing := range r.s.data.suppliers {
		if domain.SameName(existing.Name, s.Name) {
			return fmt.Errorf("supplier %q: %w", s.Name, domain.ErrAlreadyExists)
		}
	}
	r.s.data.suppliers[s.ID] = *s
	return nil
}

func (r *supplierRepo) Get(_ context.Context, id string) (*domain.Supplier, error) {
	defer r.rlock()()
	s, ok := r.s.data.suppliers[id]
	if !ok {
		return nil, fmt.Errorf("supplier %s: %w", id, domain.ErrNotFound)
	}
	return &s, nil
}

func (r *supplierRepo) FindByName(_ context.Context, name string) (*domain.Supplier, error) {
	defer r.rlock()()
	for _, s := range r.s.data.suppliers {
		if domain.SameName(s.Name, name) {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("supplier %q: %w", name, domain.ErrNotFound)
}

func (r *supplierRepo) List(_ context.Context) ([]domain.Supplier, error) {
	defer r.rlock()()
	out := make([]domain.Supplier, 0, len(r.s.data.suppliers))
	for _, s := range r.s.data.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

type userRepo struct{ repos }

func (r *userRepo) Create(_ context.Context, u *domain.User) error {
	defer r.lock()()
	email := strings.ToLower(u.Email)
	if _, ok := r.s.data.users[email]; ok {
		return fmt.Errorf("user %s: %w", email, domain.ErrAlreadyExists)
	}
	r.s.data.users[email] = *u
	return nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.rlock()()
	u, ok := r.s.data.users[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *userRepo) UpdatePassword(_ context.Context, id, hashed string) error {
	defer r.lock()()
	for email, u := range r.s.data.users {
		if u.ID == id {
			u.Password = hashed
			r.s.data.users[email] = u
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
}

func (r *userRepo) CountByRole(_ context.Context, role string) (int, error) {
	defer r.rlock()()
	n := 0
	for _, u := range r.s.data.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type stateRepo struct{ repos }

func (r *stateRepo) Get(_ context.Context, key string, dst any) (bool, error) {
	defer r.rlock()()
	raw, ok := r.s.data.state[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("state %s: %w: %v", key, domain.ErrCorruptState, err)
	}
	return true, nil
}

func (r *stateRepo) Put(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	defer r.lock()()
	r.s.data.state[key] = raw
	return nil
}

// PutRaw stores an undecoded document. Tests use it to plant malformed state.
func (s *Store) PutRaw(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.state[key] = slices.Clone(raw)
}
