package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medstore/m/domain"
	"medstore/m/internal/gst"
	"medstore/m/internal/inventory"
	"medstore/m/internal/report"
)

type purchaseLineRequest struct {
	MedicineID    string          `json:"medicine_id"`
	Name          string          `json:"name"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	IsScheduleH   bool            `json:"is_schedule_h"`
	MinStockLevel int64           `json:"min_stock_level"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MRP           decimal.Decimal `json:"mrp"`
	BatchNumber   string          `json:"batch_number"`
	ExpiryDate    string          `json:"expiry_date"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
}

type purchaseRequest struct {
	Supplier      inventory.PurchaseSupplier `json:"supplier"`
	InvoiceNumber string                     `json:"invoice_number"`
	Date          string                     `json:"date"`
	PaymentMethod domain.PaymentMethod       `json:"payment_method"`
	Items         []purchaseLineRequest      `json:"items"`
}

// toService converts request dates; date errors are reported alongside the
// service's own field validation.
func (p purchaseRequest) toService() (inventory.PurchaseRequest, *domain.ValidationError) {
	verr := domain.NewValidationError()
	out := inventory.PurchaseRequest{
		Supplier:      p.Supplier,
		InvoiceNumber: p.InvoiceNumber,
		Date:          parseDate(verr, "date", p.Date),
		PaymentMethod: p.PaymentMethod,
		Items:         make([]inventory.PurchaseLine, 0, len(p.Items)),
	}
	for i, l := range p.Items {
		out.Items = append(out.Items, inventory.PurchaseLine{
			MedicineID:    l.MedicineID,
			Name:          l.Name,
			Manufacturer:  l.Manufacturer,
			Category:      l.Category,
			IsScheduleH:   l.IsScheduleH,
			MinStockLevel: l.MinStockLevel,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			MRP:           l.MRP,
			BatchNumber:   l.BatchNumber,
			ExpiryDate:    parseDate(verr, fmt.Sprintf("items[%d].expiry_date", i), l.ExpiryDate),
			GSTRate:       l.GSTRate,
		})
	}
	return out, verr
}

type purchaseResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	Summary     gst.Summary         `json:"summary"`
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, verr := req.toService()
	if verr.HasErrors() {
		h.respondDomainError(w, r, verr)
		return
	}
	txn, summary, err := h.inventory.RecordPurchase(r.Context(), in)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, purchaseResponse{Transaction: txn, Summary: summary})
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req inventory.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.checkPrescriptions(r.Context(), req.PrescriptionFiles); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	txn, err := h.inventory.RecordSale(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

// checkPrescriptions verifies that every referenced file was uploaded.
func (h *Handler) checkPrescriptions(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	verr := domain.NewValidationError()
	for i, key := range keys {
		ok, err := h.files.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			verr.Add(fmt.Sprintf("prescription_files[%d]", i), "file not found; upload it first")
		}
	}
	return verr.OrNil()
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	kind := domain.TransactionType(r.URL.Query().Get("type"))
	if kind != "" && kind != domain.TransactionSell && kind != domain.TransactionPurchase {
		respondError(w, http.StatusBadRequest, "type must be sell or purchase")
		return
	}
	from, to = report.DayRange(from, to)
	txns, err := h.store.Transactions().List(r.Context(), from, to)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if kind == "" || t.Type == kind {
			out = append(out, t)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.store.Transactions().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txn)
}
