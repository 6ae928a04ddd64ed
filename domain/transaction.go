package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionSell     TransactionType = "sell"
	TransactionPurchase TransactionType = "purchase"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

// Valid reports whether p is one of the accepted payment methods.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// CustomerInfo is the optional buyer detail on a sale.
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SupplierRef names the supplier of a purchase. Suppliers are referenced by name.
type SupplierRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// TransactionItem is one line of a sale or purchase.
type TransactionItem struct {
	MedicineID   string          `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	BatchNo      string          `json:"batch_no"`
	ExpiryDate   time.Time       `json:"expiry_date"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
}

// Total is Price × Quantity.
func (i TransactionItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Transaction is an immutable sell or purchase record.
type Transaction struct {
	ID                  string            `json:"id"`
	Type                TransactionType   `json:"type"`
	Items               []TransactionItem `json:"items"`
	TotalAmount         decimal.Decimal   `json:"total_amount"`
	GSTAmount           decimal.Decimal   `json:"gst_amount"`
	Date                time.Time         `json:"date"`
	PaymentMethod       PaymentMethod     `json:"payment_method"`
	Customer            *CustomerInfo     `json:"customer,omitempty"`
	Supplier            *SupplierRef      `json:"supplier,omitempty"`
	InvoiceNumber       string            `json:"invoice_number,omitempty"`
	PrescriptionFiles   []string          `json:"prescription_files,omitempty"`
	PrescriptionSkipped bool              `json:"prescription_skipped,omitempty"`
}

// Subtotal is TotalAmount minus GSTAmount.
func (t *Transaction) Subtotal() decimal.Decimal {
	return t.TotalAmount.Sub(t.GSTAmount)
}

// Validate enforces the shape of each transaction variant before it is stored.
func (t *Transaction) Validate() error {
	verr := NewValidationError()
	if len(t.Items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	if !t.PaymentMethod.Valid() {
		verr.Add("payment_method", "payment method must be cash, card or upi")
	}
	if t.Date.IsZero() {
		verr.Add("date", "date is required")
	}
	switch t.Type {
	case TransactionSell:
		if t.Supplier != nil {
			verr.Add("supplier", "a sale cannot carry a supplier")
		}
		if t.InvoiceNumber != "" {
			verr.Add("invoice_number", "a sale cannot carry a supplier invoice")
		}
	case TransactionPurchase:
		if t.Supplier == nil || t.Supplier.Name == "" {
			verr.Add("supplier", "a purchase requires a supplier")
		}
		if t.InvoiceNumber == "" {
			verr.Add("invoice_number", "a purchase requires an invoice number")
		}
		if t.Customer != nil {
			verr.Add("customer", "a purchase cannot carry a customer")
		}
		if len(t.PrescriptionFiles) > 0 || t.PrescriptionSkipped {
			verr.Add("prescription_files", "a purchase cannot carry prescriptions")
		}
	default:
		verr.Add("type", "type must be sell or purchase")
	}
	return verr.OrNil()
}

// TaxData aggregates a date-filtered set of transactions.
type TaxData struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	GSTCollected   decimal.Decimal `json:"gst_collected"`
	GSTPaid        decimal.Decimal `json:"gst_paid"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	NetGST         decimal.Decimal `json:"net_gst"`
	Liability      string          `json:"liability"`
	SalesCount     int             `json:"sales_count"`
	PurchaseCount  int             `json:"purchase_count"`
}
