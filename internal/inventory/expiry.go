package inventory

import (
	"context"
	"math"
	"sort"
	"time"

	"medstore/m/domain"
)

const day = 24 * time.Hour

// DaysToExpiry rounds the time left until expiry up to whole days. It is zero
// or negative once the medicine has expired.
func DaysToExpiry(expiry, now time.Time) int {
	return int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))
}

// IsLowStock reports whether stock is at or below the minimum level.
func IsLowStock(m domain.Medicine) bool {
	return m.IsLowStock()
}

// View derives the inventory row for m.
func View(m domain.Medicine, now time.Time) domain.InventoryItem {
	return domain.InventoryItem{
		Medicine:     m,
		Quantity:     m.StockQuantity,
		IsLowStock:   m.IsLowStock(),
		DaysToExpiry: DaysToExpiry(m.ExpiryDate, now),
	}
}

// Expiring returns the medicines that expire after now and no later than
// days from now, soonest first. Expired medicines are not included.
func Expiring(medicines []domain.Medicine, days int, now time.Time) []domain.InventoryItem {
	limit := now.AddDate(0, 0, days)
	return filterSorted(medicines, now, func(m domain.Medicine) bool {
		return m.ExpiryDate.After(now) && !m.ExpiryDate.After(limit)
	})
}

// Expired returns the medicines whose expiry is at or before now.
func Expired(medicines []domain.Medicine, now time.Time) []domain.InventoryItem {
	return filterSorted(medicines, now, func(m domain.Medicine) bool {
		return !m.ExpiryDate.IsZero() && !m.ExpiryDate.After(now)
	})
}

// LowStock returns the medicines at or below their minimum stock level.
func LowStock(medicines []domain.Medicine, now time.Time) []domain.InventoryItem {
	var out []domain.InventoryItem
	for _, m := range medicines {
		if m.IsLowStock() {
			out = append(out, View(m, now))
		}
	}
	return out
}

func filterSorted(medicines []domain.Medicine, now time.Time, keep func(domain.Medicine) bool) []domain.InventoryItem {
	var out []domain.InventoryItem
	for _, m := range medicines {
		if keep(m) {
			out = append(out, View(m, now))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(out[j].ExpiryDate)
	})
	return out
}

// Inventory returns the view of every medicine.
func (s *Service) Inventory(ctx context.Context) ([]domain.InventoryItem, error) {
	meds, err := s.store.Medicines().List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.InventoryItem, 0, len(meds))
	for _, m := range meds {
		out = append(out, View(m, now))
	}
	return out, nil
}

// ExpiringMedicines lists medicines expiring within days. A non-positive days
// uses the configured alert window.
func (s *Service) ExpiringMedicines(ctx context.Context, days int) ([]domain.InventoryItem, error) {
	if days <= 0 {
		settings, err := s.settings(ctx, s.store)
		if err != nil {
			return nil, err
		}
		days = settings.ExpiryAlertDays
	}
	meds, err := s.store.Medicines().List(ctx)
	if err != nil {
		return nil, err
	}
	return Expiring(meds, days, s.now()), nil
}

func (s *Service) ExpiredMedicines(ctx context.Context) ([]domain.InventoryItem, error) {
	meds, err := s.store.Medicines().List(ctx)
	if err != nil {
		return nil, err
	}
	return Expired(meds, s.now()), nil
}

func (s *Service) LowStockMedicines(ctx context.Context) ([]domain.InventoryItem, error) {
	meds, err := s.store.Medicines().List(ctx)
	if err != nil {
		return nil, err
	}
	return LowStock(meds, s.now()), nil
}
