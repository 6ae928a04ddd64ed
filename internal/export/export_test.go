package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstore/m/domain"
)

func formatter(t *testing.T) *Formatter {
	t.Helper()
	f, err := NewFormatter("en-IN", "₹")
	require.NoError(t, err)
	return f
}

func readBack(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCurrency(t *testing.T) {
	f := formatter(t)
	assert.Equal(t, "₹1,234.50", f.Currency(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "₹0.00", f.Currency(decimal.Zero))
	assert.Equal(t, "-₹60.18", f.Currency(decimal.RequireFromString("-60.175")))

	_, err := NewFormatter("not a locale!", "₹")
	assert.Error(t, err)
}

func TestInventory(t *testing.T) {
	var buf bytes.Buffer
	items := []domain.InventoryItem{{
		Medicine: domain.Medicine{
			Name:          `Syrup "Kids", 100ml`,
			ExpiryDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			MRP:           decimal.RequireFromString("1250"),
			GSTRate:       decimal.NewFromInt(12),
			MinStockLevel: 10,
		},
		Quantity:     4,
		IsLowStock:   true,
		DaysToExpiry: 12,
	}, {
		Medicine: domain.Medicine{Name: "ORS", MRP: decimal.NewFromInt(20)},
		Quantity: 30,
	}}
	require.NoError(t, Inventory(&buf, items, decimal.NewFromInt(5), formatter(t)))

	rows := readBack(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][0])
	assert.Equal(t, "Expiry Date", rows[0][4])
	assert.Equal(t, `Syrup "Kids", 100ml`, rows[1][0], "quoting round-trips")
	assert.Equal(t, "2025-03-01", rows[1][4])
	assert.Equal(t, "Yes", rows[1][8])
	assert.Equal(t, "₹1,250.00", rows[1][10])
	assert.Equal(t, "12%", rows[1][11])
	assert.Equal(t, "5%", rows[2][11], "unrated medicine shows the default rate")
}

func TestTransactions(t *testing.T) {
	var buf bytes.Buffer
	txns := []domain.Transaction{{
		ID:            "t1",
		Type:          domain.TransactionSell,
		Date:          time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		PaymentMethod: domain.PaymentUPI,
		Customer:      &domain.CustomerInfo{Name: "Ravi"},
		TotalAmount:   decimal.RequireFromString("60.18"),
		GSTAmount:     decimal.RequireFromString("9.18"),
		Items: []domain.TransactionItem{
			{MedicineName: "Cetirizine", Quantity: 2, Price: decimal.RequireFromString("25.5"), GSTRate: decimal.NewFromInt(18)},
		},
	}}
	require.NoError(t, Transactions(&buf, txns, formatter(t)))

	rows := readBack(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-06-01 09:30", "t1", "sell", "Ravi", "", "upi", "Cetirizine", "", "2", "₹25.50", "18%", "₹51.00", "₹9.18", "₹60.18"}, rows[1])
}

func TestTax(t *testing.T) {
	var buf bytes.Buffer
	td := domain.TaxData{
		From:      time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		NetGST:    decimal.RequireFromString("-44.82"),
		Liability: "refundable",
	}
	require.NoError(t, Tax(&buf, td, formatter(t)))

	rows := readBack(t, &buf)
	assert.Equal(t, []string{"Metric", "Value"}, rows[0])
	assert.Equal(t, "2024-04-01 to 2024-06-30", rows[1][1])
	assert.Equal(t, []string{"Net GST", "-₹44.82"}, rows[6])
	assert.Equal(t, []string{"GST Liability", "refundable"}, rows[7])
}
