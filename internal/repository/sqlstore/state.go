package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"medstore/m/domain"
)

type stateRepo struct {
	q sqlx.ExtContext
}

func (r *stateRepo) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := get(ctx, r.q, &raw, `SELECT value FROM app_state WHERE state_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load state %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("state %s: %w: %v", key, domain.ErrCorruptState, err)
	}
	return true, nil
}

func (r *stateRepo) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	_, err = exec(ctx, r.q, `INSERT INTO app_state (state_key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (state_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("save state %s: %w", key, err)
	}
	return nil
}
