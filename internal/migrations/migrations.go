package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the schema. Statements are portable across SQLite and PostgreSQL.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS suppliers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            name_key TEXT NOT NULL UNIQUE,
            address TEXT NOT NULL DEFAULT '',
            contact_number TEXT NOT NULL DEFAULT '',
            gstin_number TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            name_key TEXT NOT NULL,
            manufacturer TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            batch_no TEXT NOT NULL DEFAULT '',
            expiry_date TEXT NOT NULL DEFAULT '',
            supplier TEXT NOT NULL DEFAULT '',
            is_schedule_h BOOLEAN NOT NULL DEFAULT FALSE,
            price NUMERIC NOT NULL DEFAULT 0,
            mrp NUMERIC NOT NULL DEFAULT 0,
            stock_quantity INTEGER NOT NULL DEFAULT 0,
            min_stock_level INTEGER NOT NULL DEFAULT 0,
            gst_rate NUMERIC NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_medicines_name_key ON medicines (name_key);`,
		`CREATE TABLE IF NOT EXISTS medicine_lots (
            id TEXT PRIMARY KEY,
            medicine_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            batch_no TEXT NOT NULL,
            expiry_date TEXT NOT NULL DEFAULT '',
            quantity INTEGER NOT NULL,
            purchase_price NUMERIC NOT NULL,
            purchase_date TEXT NOT NULL,
            supplier TEXT NOT NULL DEFAULT '',
            gst_rate NUMERIC NOT NULL DEFAULT 0,
            FOREIGN KEY(medicine_id) REFERENCES medicines(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_medicine_lots_medicine ON medicine_lots (medicine_id, position);`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            total_amount NUMERIC NOT NULL,
            gst_amount NUMERIC NOT NULL,
            date TEXT NOT NULL,
            payment_method TEXT NOT NULL,
            customer_name TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL DEFAULT '',
            supplier_id TEXT NOT NULL DEFAULT '',
            supplier_name TEXT NOT NULL DEFAULT '',
            invoice_number TEXT NOT NULL DEFAULT '',
            prescription_files TEXT NOT NULL DEFAULT '[]',
            prescription_skipped BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions (date);`,
		`CREATE TABLE IF NOT EXISTS transaction_items (
            transaction_id TEXT NOT NULL,
            line_no INTEGER NOT NULL,
            medicine_id TEXT NOT NULL,
            medicine_name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            price NUMERIC NOT NULL,
            batch_no TEXT NOT NULL DEFAULT '',
            expiry_date TEXT NOT NULL DEFAULT '',
            gst_rate NUMERIC NOT NULL DEFAULT 0,
            PRIMARY KEY (transaction_id, line_no),
            FOREIGN KEY(transaction_id) REFERENCES transactions(id)
        );`,
		`CREATE TABLE IF NOT EXISTS app_state (
            state_key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
