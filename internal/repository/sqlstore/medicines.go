package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"medstore/m/domain"
)

type medicineRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Manufacturer  string          `db:"manufacturer"`
	Category      string          `db:"category"`
	BatchNo       string          `db:"batch_no"`
	ExpiryDate    string          `db:"expiry_date"`
	Supplier      string          `db:"supplier"`
	IsScheduleH   bool            `db:"is_schedule_h"`
	Price         decimal.Decimal `db:"price"`
	MRP           decimal.Decimal `db:"mrp"`
	StockQuantity int64           `db:"stock_quantity"`
	MinStockLevel int64           `db:"min_stock_level"`
	GSTRate       decimal.Decimal `db:"gst_rate"`
	CreatedAt     string          `db:"created_at"`
	UpdatedAt     string          `db:"updated_at"`
}

type lotRow struct {
	ID            string          `db:"id"`
	MedicineID    string          `db:"medicine_id"`
	Position      int             `db:"position"`
	BatchNo       string          `db:"batch_no"`
	ExpiryDate    string          `db:"expiry_date"`
	Quantity      int64           `db:"quantity"`
	PurchasePrice decimal.Decimal `db:"purchase_price"`
	PurchaseDate  string          `db:"purchase_date"`
	Supplier      string          `db:"supplier"`
	GSTRate       decimal.Decimal `db:"gst_rate"`
}

const medicineColumns = `id, name, manufacturer, category, batch_no, expiry_date, supplier, is_schedule_h,
    price, mrp, stock_quantity, min_stock_level, gst_rate, created_at, updated_at`

func (r medicineRow) toDomain() (domain.Medicine, error) {
	m := domain.Medicine{
		ID:            r.ID,
		Name:          r.Name,
		Manufacturer:  r.Manufacturer,
		Category:      r.Category,
		BatchNo:       r.BatchNo,
		Supplier:      r.Supplier,
		IsScheduleH:   r.IsScheduleH,
		Price:         r.Price,
		MRP:           r.MRP,
		StockQuantity: r.StockQuantity,
		MinStockLevel: r.MinStockLevel,
		GSTRate:       r.GSTRate,
	}
	var err error
	if m.ExpiryDate, err = parseDate(r.ExpiryDate); err != nil {
		return m, fmt.Errorf("medicine %s expiry: %w", r.ID, err)
	}
	if m.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return m, fmt.Errorf("medicine %s created_at: %w", r.ID, err)
	}
	if m.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return m, fmt.Errorf("medicine %s updated_at: %w", r.ID, err)
	}
	return m, nil
}

func (r lotRow) toDomain() (domain.Lot, error) {
	l := domain.Lot{
		ID:            r.ID,
		MedicineID:    r.MedicineID,
		BatchNo:       r.BatchNo,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		Supplier:      r.Supplier,
		GSTRate:       r.GSTRate,
	}
	var err error
	if l.ExpiryDate, err = parseDate(r.ExpiryDate); err != nil {
		return l, fmt.Errorf("lot %s expiry: %w", r.ID, err)
	}
	if l.PurchaseDate, err = parseTimestamp(r.PurchaseDate); err != nil {
		return l, fmt.Errorf("lot %s purchase_date: %w", r.ID, err)
	}
	return l, nil
}

type medicineRepo struct {
	q sqlx.ExtContext
}

func (r *medicineRepo) Create(ctx context.Context, m *domain.Medicine) error {
	_, err := exec(ctx, r.q, `INSERT INTO medicines (id, name, name_key, manufacturer, category, batch_no, expiry_date, supplier,
            is_schedule_h, price, mrp, stock_quantity, min_stock_level, gst_rate, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, nameKey(m.Name), m.Manufacturer, m.Category, m.BatchNo, formatDate(m.ExpiryDate), m.Supplier,
		m.IsScheduleH, m.Price, m.MRP, m.StockQuantity, m.MinStockLevel, m.GSTRate,
		formatTimestamp(m.CreatedAt), formatTimestamp(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert medicine %s: %w", m.ID, err)
	}
	return r.insertLots(ctx, m)
}

func (r *medicineRepo) Update(ctx context.Context, m *domain.Medicine) error {
	res, err := exec(ctx, r.q, `UPDATE medicines SET name = ?, name_key = ?, manufacturer = ?, category = ?, batch_no = ?,
            expiry_date = ?, supplier = ?, is_schedule_h = ?, price = ?, mrp = ?, stock_quantity = ?,
            min_stock_level = ?, gst_rate = ?, updated_at = ?
        WHERE id = ?`,
		m.Name, nameKey(m.Name), m.Manufacturer, m.Category, m.BatchNo,
		formatDate(m.ExpiryDate), m.Supplier, m.IsScheduleH, m.Price, m.MRP, m.StockQuantity,
		m.MinStockLevel, m.GSTRate, formatTimestamp(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("update medicine %s: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("medicine %s: %w", m.ID, domain.ErrNotFound)
	}
	if _, err := exec(ctx, r.q, `DELETE FROM medicine_lots WHERE medicine_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear lots of %s: %w", m.ID, err)
	}
	return r.insertLots(ctx, m)
}

func (r *medicineRepo) insertLots(ctx context.Context, m *domain.Medicine) error {
	for i, l := range m.Lots {
		_, err := exec(ctx, r.q, `INSERT INTO medicine_lots (id, medicine_id, position, batch_no, expiry_date, quantity,
                purchase_price, purchase_date, supplier, gst_rate)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, m.ID, i, l.BatchNo, formatDate(l.ExpiryDate), l.Quantity,
			l.PurchasePrice, formatTimestamp(l.PurchaseDate), l.Supplier, l.GSTRate)
		if err != nil {
			return fmt.Errorf("insert lot %s: %w", l.ID, err)
		}
	}
	return nil
}

func (r *medicineRepo) Get(ctx context.Context, id string) (*domain.Medicine, error) {
	var row medicineRow
	if err := get(ctx, r.q, &row, `SELECT `+medicineColumns+` FROM medicines WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "medicine "+id)
	}
	return r.hydrateOne(ctx, row)
}

func (r *medicineRepo) FindByName(ctx context.Context, name string) (*domain.Medicine, error) {
	var row medicineRow
	err := get(ctx, r.q, &row, `SELECT `+medicineColumns+` FROM medicines WHERE name_key = ? ORDER BY created_at LIMIT 1`, nameKey(name))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("medicine %q", name))
	}
	return r.hydrateOne(ctx, row)
}

func (r *medicineRepo) List(ctx context.Context) ([]domain.Medicine, error) {
	var rows []medicineRow
	if err := selectAll(ctx, r.q, &rows, `SELECT `+medicineColumns+` FROM medicines ORDER BY name_key, id`); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	var lots []lotRow
	if err := selectAll(ctx, r.q, &lots, `SELECT * FROM medicine_lots ORDER BY medicine_id, position`); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	byMedicine := make(map[string][]domain.Lot)
	for _, lr := range lots {
		l, err := lr.toDomain()
		if err != nil {
			return nil, err
		}
		byMedicine[lr.MedicineID] = append(byMedicine[lr.MedicineID], l)
	}

	out := make([]domain.Medicine, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		m.Lots = byMedicine[m.ID]
		out = append(out, m)
	}
	return out, nil
}

func (r *medicineRepo) hydrateOne(ctx context.Context, row medicineRow) (*domain.Medicine, error) {
	m, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	var lots []lotRow
	if err := selectAll(ctx, r.q, &lots, `SELECT * FROM medicine_lots WHERE medicine_id = ? ORDER BY position`, m.ID); err != nil {
		return nil, fmt.Errorf("load lots of %s: %w", m.ID, err)
	}
	for _, lr := range lots {
		l, err := lr.toDomain()
		if err != nil {
			return nil, err
		}
		m.Lots = append(m.Lots, l)
	}
	return &m, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
