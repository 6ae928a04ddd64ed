// Package report aggregates recorded transactions into tax, profit and trend
// summaries.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/gst"
	"medstore/m/internal/inventory"
)

const (
	LiabilityPayable    = "payable"
	LiabilityRefundable = "refundable"
	LiabilityNil        = "nil"
)

// DayRange widens [from, to] to cover both calendar days completely.
func DayRange(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).
		AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// Tax totals the transactions dated within [from, to]. Both bounds are
// instants; use DayRange for calendar days.
func Tax(txns []domain.Transaction, from, to time.Time) domain.TaxData {
	td := domain.TaxData{From: from, To: to}
	for _, t := range txns {
		if !inRange(t.Date, from, to) {
			continue
		}
		switch t.Type {
		case domain.TransactionSell:
			td.TotalSales = td.TotalSales.Add(t.TotalAmount)
			td.GSTCollected = td.GSTCollected.Add(t.GSTAmount)
			td.SalesCount++
		case domain.TransactionPurchase:
			td.TotalPurchases = td.TotalPurchases.Add(t.TotalAmount)
			td.GSTPaid = td.GSTPaid.Add(t.GSTAmount)
			td.PurchaseCount++
		}
	}
	td.NetProfit = td.TotalSales.Sub(td.TotalPurchases)
	td.NetGST = td.GSTCollected.Sub(td.GSTPaid)
	td.Liability = Liability(td.NetGST)
	return td
}

// Liability names the sign of the net GST position.
func Liability(net decimal.Decimal) string {
	switch net.Sign() {
	case 1:
		return LiabilityPayable
	case -1:
		return LiabilityRefundable
	default:
		return LiabilityNil
	}
}

// MonthlyPoint is one YYYY-MM bucket of the trend.
type MonthlyPoint struct {
	Month         string          `json:"month"`
	Sales         decimal.Decimal `json:"sales"`
	Purchases     decimal.Decimal `json:"purchases"`
	GSTCollected  decimal.Decimal `json:"gst_collected"`
	GSTPaid       decimal.Decimal `json:"gst_paid"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	SalesCount    int             `json:"sales_count"`
	PurchaseCount int             `json:"purchase_count"`
}

// Monthly buckets the transactions within [from, to] by calendar month in
// from's location, oldest first.
func Monthly(txns []domain.Transaction, from, to time.Time) []MonthlyPoint {
	buckets := map[string]*MonthlyPoint{}
	for _, t := range txns {
		if !inRange(t.Date, from, to) {
			continue
		}
		key := t.Date.In(from.Location()).Format("2006-01")
		p, ok := buckets[key]
		if !ok {
			p = &MonthlyPoint{Month: key}
			buckets[key] = p
		}
		switch t.Type {
		case domain.TransactionSell:
			p.Sales = p.Sales.Add(t.TotalAmount)
			p.GSTCollected = p.GSTCollected.Add(t.GSTAmount)
			p.SalesCount++
		case domain.TransactionPurchase:
			p.Purchases = p.Purchases.Add(t.TotalAmount)
			p.GSTPaid = p.GSTPaid.Add(t.GSTAmount)
			p.PurchaseCount++
		}
	}
	out := make([]MonthlyPoint, 0, len(buckets))
	for _, p := range buckets {
		p.NetProfit = p.Sales.Sub(p.Purchases)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RateSlab is the GSTR-style summary of one tax rate.
type RateSlab struct {
	Rate            decimal.Decimal `json:"rate"`
	SalesTaxable    decimal.Decimal `json:"sales_taxable"`
	SalesCGST       decimal.Decimal `json:"sales_cgst"`
	SalesSGST       decimal.Decimal `json:"sales_sgst"`
	PurchaseTaxable decimal.Decimal `json:"purchase_taxable"`
	PurchaseCGST    decimal.Decimal `json:"purchase_cgst"`
	PurchaseSGST    decimal.Decimal `json:"purchase_sgst"`
}

// Slabs groups line items within [from, to] by their GST rate.
func Slabs(txns []domain.Transaction, from, to time.Time) []RateSlab {
	slabs := map[string]*RateSlab{}
	for _, t := range txns {
		if !inRange(t.Date, from, to) {
			continue
		}
		for _, item := range t.Items {
			b := gst.Line(item.Total(), item.GSTRate)
			key := item.GSTRate.String()
			s, ok := slabs[key]
			if !ok {
				s = &RateSlab{Rate: item.GSTRate}
				slabs[key] = s
			}
			if t.Type == domain.TransactionSell {
				s.SalesTaxable = s.SalesTaxable.Add(b.Taxable)
				s.SalesCGST = s.SalesCGST.Add(b.CGST)
				s.SalesSGST = s.SalesSGST.Add(b.SGST)
			} else {
				s.PurchaseTaxable = s.PurchaseTaxable.Add(b.Taxable)
				s.PurchaseCGST = s.PurchaseCGST.Add(b.CGST)
				s.PurchaseSGST = s.PurchaseSGST.Add(b.SGST)
			}
		}
	}
	out := make([]RateSlab, 0, len(slabs))
	for _, s := range slabs {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out
}

// DashboardData is the at-a-glance summary for the home screen.
type DashboardData struct {
	Medicines       int             `json:"medicines"`
	LowStock        int             `json:"low_stock"`
	Expiring        int             `json:"expiring"`
	Expired         int             `json:"expired"`
	StockValue      decimal.Decimal `json:"stock_value"`
	TodaySales      decimal.Decimal `json:"today_sales"`
	TodaySalesCount int             `json:"today_sales_count"`
}

type Service struct {
	store      domain.Store
	log        *zap.Logger
	now        func() time.Time
	expiryDays int
}

func NewService(store domain.Store, log *zap.Logger, expiryDays int, now func() time.Time) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if expiryDays <= 0 {
		expiryDays = 30
	}
	return &Service{store: store, log: log.Named("report"), now: now, expiryDays: expiryDays}
}

func (s *Service) load(ctx context.Context, from, to time.Time) ([]domain.Transaction, time.Time, time.Time, error) {
	from, to = DayRange(from, to)
	if to.Before(from) {
		verr := domain.NewValidationError()
		verr.Add("to", "must not be before from")
		return nil, from, to, verr
	}
	txns, err := s.store.Transactions().List(ctx, from, to)
	if err != nil {
		return nil, from, to, fmt.Errorf("list transactions: %w", err)
	}
	return txns, from, to, nil
}

// TaxReport totals the calendar days from..to inclusive.
func (s *Service) TaxReport(ctx context.Context, from, to time.Time) (domain.TaxData, error) {
	txns, from, to, err := s.load(ctx, from, to)
	if err != nil {
		return domain.TaxData{}, err
	}
	td := Tax(txns, from, to)
	s.log.Debug("tax report",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("sales", td.SalesCount),
		zap.Int("purchases", td.PurchaseCount),
	)
	return td, nil
}

func (s *Service) MonthlyTrend(ctx context.Context, from, to time.Time) ([]MonthlyPoint, error) {
	txns, from, to, err := s.load(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Monthly(txns, from, to), nil
}

func (s *Service) RateSlabs(ctx context.Context, from, to time.Time) ([]RateSlab, error) {
	txns, from, to, err := s.load(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Slabs(txns, from, to), nil
}

// Dashboard summarises stock health and today's sales.
func (s *Service) Dashboard(ctx context.Context) (DashboardData, error) {
	now := s.now()
	meds, err := s.store.Medicines().List(ctx)
	if err != nil {
		return DashboardData{}, fmt.Errorf("list medicines: %w", err)
	}
	days, err := s.alertDays(ctx)
	if err != nil {
		return DashboardData{}, err
	}
	d := DashboardData{
		Medicines: len(meds),
		LowStock:  len(inventory.LowStock(meds, now)),
		Expiring:  len(inventory.Expiring(meds, days, now)),
		Expired:   len(inventory.Expired(meds, now)),
	}
	for _, m := range meds {
		d.StockValue = d.StockValue.Add(m.Price.Mul(decimal.NewFromInt(m.StockQuantity)))
	}

	txns, from, to, err := s.load(ctx, now, now)
	if err != nil {
		return DashboardData{}, err
	}
	today := Tax(txns, from, to)
	d.TodaySales = today.TotalSales
	d.TodaySalesCount = today.SalesCount
	return d, nil
}

// alertDays is the stored expiry alert window, or the configured one when
// none has been saved.
func (s *Service) alertDays(ctx context.Context) (int, error) {
	var as domain.AppSettings
	if _, err := s.store.State().Get(ctx, domain.StateAppSettings, &as); err != nil {
		return 0, fmt.Errorf("load app settings: %w", err)
	}
	if as.ExpiryAlertDays > 0 {
		return as.ExpiryAlertDays, nil
	}
	return s.expiryDays, nil
}
