package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"medstore/m/domain"
)

type userRepo struct {
	q sqlx.ExtContext
}

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := exec(ctx, r.q, `INSERT INTO users (id, username, email, password, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, strings.ToLower(u.Email), u.Password, u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := get(ctx, r.q, &u, `SELECT id, username, email, password, role, created_at FROM users WHERE email = ?`, strings.ToLower(email))
	if err != nil {
		return nil, notFound(err, "user "+email)
	}
	return &u, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, hashed string) error {
	res, err := exec(ctx, r.q, `UPDATE users SET password = ? WHERE id = ?`, hashed, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *userRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := get(ctx, r.q, &n, `SELECT COUNT(*) FROM users WHERE role = ?`, role); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
