package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"medstore/m/domain"
)

type supplierRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Address       string `db:"address"`
	ContactNumber string `db:"contact_number"`
	GSTINNumber   string `db:"gstin_number"`
	CreatedAt     string `db:"created_at"`
}

func (r supplierRow) toDomain() (domain.Supplier, error) {
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("supplier %s created_at: %w", r.ID, err)
	}
	return domain.Supplier{
		ID:            r.ID,
		Name:          r.Name,
		Address:       r.Address,
		ContactNumber: r.ContactNumber,
		GSTINNumber:   r.GSTINNumber,
		CreatedAt:     created,
	}, nil
}

const supplierColumns = `id, name, address, contact_number, gstin_number, created_at`

type supplierRepo struct {
	q sqlx.ExtContext
}

func (r *supplierRepo) Create(ctx context.Context, s *domain.Supplier) error {
	_, err := exec(ctx, r.q, `INSERT INTO suppliers (id, name, name_key, address, contact_number, gstin_number, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, nameKey(s.Name), s.Address, s.ContactNumber, s.GSTINNumber, formatTimestamp(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("supplier %q: %w", s.Name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (r *supplierRepo) Get(ctx context.Context, id string) (*domain.Supplier, error) {
	var row supplierRow
	if err := get(ctx, r.q, &row, `SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "supplier "+id)
	}
	s, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *supplierRepo) FindByName(ctx context.Context, name string) (*domain.Supplier, error) {
	var row supplierRow
	if err := get(ctx, r.q, &row, `SELECT `+supplierColumns+` FROM suppliers WHERE name_key = ?`, nameKey(name)); err != nil {
		return nil, notFound(err, fmt.Sprintf("supplier %q", name))
	}
	s, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *supplierRepo) List(ctx context.Context) ([]domain.Supplier, error) {
	var rows []supplierRow
	if err := selectAll(ctx, r.q, &rows, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name_key`); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	out := make([]domain.Supplier, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// isUniqueViolation matches the constraint messages of SQLite and PostgreSQL.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
