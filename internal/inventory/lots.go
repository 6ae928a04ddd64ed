package inventory

import (
	"sort"
	"time"

	"medstore/m/domain"
)

// LotSelection is the quantity taken from one lot.
type LotSelection struct {
	LotID      string
	BatchNo    string
	ExpiryDate time.Time
	Quantity   int64
}

// consumeFIFO takes qty from m's lots, oldest purchase first, and returns what
// it took. Quantity not covered by lots is returned as shortfall; this happens
// for stock that predates lot tracking.
func consumeFIFO(m *domain.Medicine, qty int64) (selections []LotSelection, shortfall int64) {
	order := make([]int, 0, len(m.Lots))
	for i := range m.Lots {
		if m.Lots[i].Quantity > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m.Lots[order[a]].PurchaseDate.Before(m.Lots[order[b]].PurchaseDate)
	})

	remaining := qty
	for _, i := range order {
		if remaining <= 0 {
			break
		}
		lot := &m.Lots[i]
		take := min(remaining, lot.Quantity)
		lot.Quantity -= take
		remaining -= take
		selections = append(selections, LotSelection{
			LotID:      lot.ID,
			BatchNo:    lot.BatchNo,
			ExpiryDate: lot.ExpiryDate,
			Quantity:   take,
		})
	}
	return selections, remaining
}
