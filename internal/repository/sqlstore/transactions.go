package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medstore/m/domain"
)

type transactionRow struct {
	ID                  string          `db:"id"`
	Type                string          `db:"type"`
	TotalAmount         decimal.Decimal `db:"total_amount"`
	GSTAmount           decimal.Decimal `db:"gst_amount"`
	Date                string          `db:"date"`
	PaymentMethod       string          `db:"payment_method"`
	CustomerName        string          `db:"customer_name"`
	CustomerPhone       string          `db:"customer_phone"`
	SupplierID          string          `db:"supplier_id"`
	SupplierName        string          `db:"supplier_name"`
	InvoiceNumber       string          `db:"invoice_number"`
	PrescriptionFiles   string          `db:"prescription_files"`
	PrescriptionSkipped bool            `db:"prescription_skipped"`
}

type itemRow struct {
	TransactionID string          `db:"transaction_id"`
	LineNo        int             `db:"line_no"`
	MedicineID    string          `db:"medicine_id"`
	MedicineName  string          `db:"medicine_name"`
	Quantity      int64           `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	BatchNo       string          `db:"batch_no"`
	ExpiryDate    string          `db:"expiry_date"`
	GSTRate       decimal.Decimal `db:"gst_rate"`
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	t := domain.Transaction{
		ID:                  r.ID,
		Type:                domain.TransactionType(r.Type),
		TotalAmount:         r.TotalAmount,
		GSTAmount:           r.GSTAmount,
		PaymentMethod:       domain.PaymentMethod(r.PaymentMethod),
		InvoiceNumber:       r.InvoiceNumber,
		PrescriptionSkipped: r.PrescriptionSkipped,
	}
	var err error
	if t.Date, err = parseTimestamp(r.Date); err != nil {
		return t, fmt.Errorf("transaction %s date: %w", r.ID, err)
	}
	if r.CustomerName != "" || r.CustomerPhone != "" {
		t.Customer = &domain.CustomerInfo{Name: r.CustomerName, Phone: r.CustomerPhone}
	}
	if r.SupplierName != "" {
		t.Supplier = &domain.SupplierRef{ID: r.SupplierID, Name: r.SupplierName}
	}
	if r.PrescriptionFiles != "" {
		if err := json.Unmarshal([]byte(r.PrescriptionFiles), &t.PrescriptionFiles); err != nil {
			return t, fmt.Errorf("transaction %s prescriptions: %w: %v", r.ID, domain.ErrCorruptState, err)
		}
	}
	return t, nil
}

func (r itemRow) toDomain() (domain.TransactionItem, error) {
	expiry, err := parseDate(r.ExpiryDate)
	if err != nil {
		return domain.TransactionItem{}, fmt.Errorf("transaction %s line %d expiry: %w", r.TransactionID, r.LineNo, err)
	}
	return domain.TransactionItem{
		MedicineID:   r.MedicineID,
		MedicineName: r.MedicineName,
		Quantity:     r.Quantity,
		Price:        r.Price,
		BatchNo:      r.BatchNo,
		ExpiryDate:   expiry,
		GSTRate:      r.GSTRate,
	}, nil
}

type transactionRepo struct {
	q sqlx.ExtContext
}

func (r *transactionRepo) Append(ctx context.Context, t *domain.Transaction) error {
	files, err := json.Marshal(t.PrescriptionFiles)
	if err != nil {
		return fmt.Errorf("encode prescriptions: %w", err)
	}
	if t.PrescriptionFiles == nil {
		files = []byte("[]")
	}
	var customerName, customerPhone, supplierID, supplierName string
	if t.Customer != nil {
		customerName, customerPhone = t.Customer.Name, t.Customer.Phone
	}
	if t.Supplier != nil {
		supplierID, supplierName = t.Supplier.ID, t.Supplier.Name
	}

	_, err = exec(ctx, r.q, `INSERT INTO transactions (id, type, total_amount, gst_amount, date, payment_method,
            customer_name, customer_phone, supplier_id, supplier_name, invoice_number, prescription_files, prescription_skipped)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.TotalAmount, t.GSTAmount, formatTimestamp(t.Date), string(t.PaymentMethod),
		customerName, customerPhone, supplierID, supplierName, t.InvoiceNumber, string(files), t.PrescriptionSkipped)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}

	for i, item := range t.Items {
		_, err := exec(ctx, r.q, `INSERT INTO transaction_items (transaction_id, line_no, medicine_id, medicine_name,
                quantity, price, batch_no, expiry_date, gst_rate)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, item.MedicineID, item.MedicineName, item.Quantity, item.Price,
			item.BatchNo, formatDate(item.ExpiryDate), item.GSTRate)
		if err != nil {
			return fmt.Errorf("insert transaction %s line %d: %w", t.ID, i, err)
		}
	}
	return nil
}

func (r *transactionRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var row transactionRow
	if err := get(ctx, r.q, &row, `SELECT * FROM transactions WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "transaction "+id)
	}
	out, err := r.hydrate(ctx, []transactionRow{row},
		`SELECT * FROM transaction_items WHERE transaction_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (r *transactionRepo) List(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	// Items are loaded with the same date filter through a join, so the
	// query size does not grow with the number of transactions.
	where := ` WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		where += ` AND t.date >= ?`
		args = append(args, formatTimestamp(from))
	}
	if !to.IsZero() {
		where += ` AND t.date <= ?`
		args = append(args, formatTimestamp(to))
	}

	var rows []transactionRow
	if err := selectAll(ctx, r.q, &rows, `SELECT t.* FROM transactions t`+where+` ORDER BY t.date, t.id`, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return r.hydrate(ctx, rows,
		`SELECT i.* FROM transaction_items i JOIN transactions t ON t.id = i.transaction_id`+where+
			` ORDER BY i.transaction_id, i.line_no`, args...)
}

// hydrate attaches the items returned by itemsQuery to rows.
func (r *transactionRepo) hydrate(ctx context.Context, rows []transactionRow, itemsQuery string, args ...any) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	var items []itemRow
	if err := selectAll(ctx, r.q, &items, itemsQuery, args...); err != nil {
		return nil, fmt.Errorf("load transaction items: %w", err)
	}
	byTransaction := make(map[string][]domain.TransactionItem)
	for _, ir := range items {
		item, err := ir.toDomain()
		if err != nil {
			return nil, err
		}
		byTransaction[ir.TransactionID] = append(byTransaction[ir.TransactionID], item)
	}

	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		t.Items = byTransaction[t.ID]
		out = append(out, t)
	}
	return out, nil
}
