// Package export writes inventory, transaction and tax data as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"medstore/m/domain"
)

// Formatter renders currency for one locale.
type Formatter struct {
	printer *message.Printer
	symbol  string
	title   cases.Caser
}

// NewFormatter parses locale as a BCP 47 tag such as "en-IN".
func NewFormatter(locale, symbol string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
		title:   cases.Title(tag),
	}, nil
}

// Currency formats d to two places with locale grouping and the symbol.
func (f *Formatter) Currency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + f.symbol + f.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// Percent formats a rate such as 12 as "12%".
func (f *Formatter) Percent(d decimal.Decimal) string {
	return d.String() + "%"
}

// header turns column keys like "expiry_date" into "Expiry Date".
func (f *Formatter) header(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = f.title.String(strings.ReplaceAll(k, "_", " "))
	}
	return out
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func date(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var inventoryColumns = []string{
	"name", "manufacturer", "category", "batch_no", "expiry_date", "days_to_expiry",
	"stock_quantity", "min_stock_level", "low_stock", "price", "mrp", "gst_rate", "schedule_h", "supplier",
}

// Inventory writes one row per medicine. Medicines without their own GST
// rate are shown at defaultRate.
func Inventory(w io.Writer, items []domain.InventoryItem, defaultRate decimal.Decimal, f *Formatter) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		expiry, days := "", ""
		if !it.ExpiryDate.IsZero() {
			expiry = date(it.ExpiryDate)
			days = strconv.Itoa(it.DaysToExpiry)
		}
		rows = append(rows, []string{
			it.Name,
			it.Manufacturer,
			it.Category,
			it.BatchNo,
			expiry,
			days,
			strconv.FormatInt(it.Quantity, 10),
			strconv.FormatInt(it.MinStockLevel, 10),
			yesNo(it.IsLowStock),
			f.Currency(it.Price),
			f.Currency(it.MRP),
			f.Percent(it.EffectiveGSTRate(defaultRate)),
			yesNo(it.IsScheduleH),
			it.Supplier,
		})
	}
	return writeAll(w, f.header(inventoryColumns), rows)
}

var transactionColumns = []string{
	"date", "id", "type", "party", "invoice_number", "payment_method", "medicine", "batch_no",
	"quantity", "unit_price", "gst_rate", "line_total", "transaction_gst", "transaction_total",
}

// Transactions writes one row per line item; transaction totals repeat on
// every line of the same transaction.
func Transactions(w io.Writer, txns []domain.Transaction, f *Formatter) error {
	var rows [][]string
	for _, t := range txns {
		party := ""
		switch {
		case t.Supplier != nil:
			party = t.Supplier.Name
		case t.Customer != nil:
			party = t.Customer.Name
		}
		for _, it := range t.Items {
			rows = append(rows, []string{
				t.Date.Format("2006-01-02 15:04"),
				t.ID,
				string(t.Type),
				party,
				t.InvoiceNumber,
				string(t.PaymentMethod),
				it.MedicineName,
				it.BatchNo,
				strconv.FormatInt(it.Quantity, 10),
				f.Currency(it.Price),
				f.Percent(it.GSTRate),
				f.Currency(it.Total()),
				f.Currency(t.GSTAmount),
				f.Currency(t.TotalAmount),
			})
		}
	}
	return writeAll(w, f.header(transactionColumns), rows)
}

// Tax writes the tax report as metric/value pairs.
func Tax(w io.Writer, td domain.TaxData, f *Formatter) error {
	rows := [][]string{
		{"Period", date(td.From) + " to " + date(td.To)},
		{"Total Sales", f.Currency(td.TotalSales)},
		{"Total Purchases", f.Currency(td.TotalPurchases)},
		{"GST Collected", f.Currency(td.GSTCollected)},
		{"GST Paid", f.Currency(td.GSTPaid)},
		{"Net GST", f.Currency(td.NetGST)},
		{"GST Liability", td.Liability},
		{"Net Profit", f.Currency(td.NetProfit)},
		{"Sales", strconv.Itoa(td.SalesCount)},
		{"Purchases", strconv.Itoa(td.PurchaseCount)},
	}
	return writeAll(w, f.header([]string{"metric", "value"}), rows)
}
