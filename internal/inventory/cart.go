package inventory

import (
	"github.com/shopspring/decimal"

	"medstore/m/domain"
	"medstore/m/internal/gst"
)

// CartLine is a medicine, the quantity being sold and the GST rate it is
// taxed at.
type CartLine struct {
	Medicine domain.Medicine `json:"medicine"`
	Quantity int64           `json:"quantity"`
	GSTRate  decimal.Decimal `json:"gst_rate"`
}

// UnitPrice is the medicine's MRP, or its price when no MRP is set.
func (l CartLine) UnitPrice() decimal.Decimal {
	return l.Medicine.SalePrice()
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(l.Quantity))
}

// Tax applies half of the line's rate once for SGST and once for CGST.
func (l CartLine) Tax() gst.Breakdown {
	return gst.SplitRate(l.Total(), l.GSTRate)
}

// Cart accumulates sale lines, one per medicine.
type Cart struct {
	lines       []CartLine
	defaultRate decimal.Decimal
}

// NewCart returns an empty cart that taxes medicines without their own GST
// rate at defaultRate.
func NewCart(defaultRate decimal.Decimal) *Cart {
	return &Cart{defaultRate: defaultRate}
}

// Add puts qty more of m into the cart. When the cart would then hold more
// than m's stock the cart is left unchanged and a *domain.StockError is
// returned.
func (c *Cart) Add(m domain.Medicine, qty int64) error {
	if qty <= 0 {
		verr := domain.NewValidationError()
		verr.Add("quantity", "Must be greater than 0")
		return verr
	}
	idx := c.index(m.ID)
	inCart := int64(0)
	if idx >= 0 {
		inCart = c.lines[idx].Quantity
	}
	if inCart+qty > m.StockQuantity {
		return &domain.StockError{
			MedicineID:   m.ID,
			MedicineName: m.Name,
			Requested:    inCart + qty,
			Available:    m.StockQuantity,
		}
	}
	rate := m.EffectiveGSTRate(c.defaultRate)
	if idx >= 0 {
		c.lines[idx].Medicine = m
		c.lines[idx].Quantity += qty
		c.lines[idx].GSTRate = rate
		return nil
	}
	c.lines = append(c.lines, CartLine{Medicine: m, Quantity: qty, GSTRate: rate})
	return nil
}

// Remove drops the line for medicineID, if any.
func (c *Cart) Remove(medicineID string) {
	if idx := c.index(medicineID); idx >= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// RequiresPrescription reports whether any line is a Schedule-H medicine.
func (c *Cart) RequiresPrescription() bool {
	for _, l := range c.lines {
		if l.Medicine.IsScheduleH {
			return true
		}
	}
	return false
}

// Summary totals the per-line taxes.
func (c *Cart) Summary() gst.Summary {
	lines := make([]gst.Breakdown, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, l.Tax())
	}
	return gst.Summarize(lines)
}

func (c *Cart) index(medicineID string) int {
	for i, l := range c.lines {
		if l.Medicine.ID == medicineID {
			return i
		}
	}
	return -1
}
