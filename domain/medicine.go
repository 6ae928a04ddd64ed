package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for expiry and report ranges.
const DateLayout = "2006-01-02"

// Medicine is a catalog entry together with its aggregate stock and purchase lots.
type Medicine struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	BatchNo       string          `json:"batch_no"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	Supplier      string          `json:"supplier"`
	IsScheduleH   bool            `json:"is_schedule_h"`
	Price         decimal.Decimal `json:"price"`
	MRP           decimal.Decimal `json:"mrp"`
	StockQuantity int64           `json:"stock_quantity"`
	MinStockLevel int64           `json:"min_stock_level"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	Lots          []Lot           `json:"lots,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Lot is one purchased batch of a medicine. Only Quantity changes after creation.
type Lot struct {
	ID            string          `json:"id"`
	MedicineID    string          `json:"medicine_id"`
	BatchNo       string          `json:"batch_no"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	Supplier      string          `json:"supplier"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
}

// SalePrice is the retail unit price: MRP, or the purchase price when no MRP is set.
func (m *Medicine) SalePrice() decimal.Decimal {
	if m.MRP.IsPositive() {
		return m.MRP
	}
	return m.Price
}

// EffectiveGSTRate returns the medicine's rate, or fallback when unset.
func (m *Medicine) EffectiveGSTRate(fallback decimal.Decimal) decimal.Decimal {
	if m.GSTRate.IsPositive() {
		return m.GSTRate
	}
	return fallback
}

// LotQuantity sums the remaining quantity across all lots.
func (m *Medicine) LotQuantity() int64 {
	var total int64
	for _, l := range m.Lots {
		total += l.Quantity
	}
	return total
}

// IsLowStock reports whether stock is at or below the minimum level.
func (m *Medicine) IsLowStock() bool {
	return m.StockQuantity <= m.MinStockLevel
}

// SameName compares medicine names ignoring case and surrounding space.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// InventoryItem is the derived stock view of a medicine.
type InventoryItem struct {
	Medicine
	Quantity     int64 `json:"quantity"`
	IsLowStock   bool  `json:"is_low_stock"`
	DaysToExpiry int   `json:"days_to_expiry"`
}
