package api

import (
	"bytes"
	"fmt"
	"net/http"

	"medstore/m/domain"
	"medstore/m/internal/export"
	"medstore/m/internal/report"
)

// writeCSV renders into a buffer first so a failed export still gets a JSON
// error instead of a truncated attachment.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) exportInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	items, err := h.inventory.Inventory(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	settings, err := h.inventory.Settings(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	name := "inventory-" + h.now().Format(domain.DateLayout) + ".csv"
	h.writeCSV(w, r, name, func(buf *bytes.Buffer) error {
		return export.Inventory(buf, items, settings.DefaultGSTRate, h.formatter)
	})
}

func (h *Handler) exportTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	from, to = report.DayRange(from, to)
	txns, err := h.store.Transactions().List(r.Context(), from, to)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	name := fmt.Sprintf("transactions-%s-%s.csv", from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	h.writeCSV(w, r, name, func(buf *bytes.Buffer) error {
		return export.Transactions(buf, txns, h.formatter)
	})
}

func (h *Handler) exportTax(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	td, err := h.reports.TaxReport(r.Context(), from, to)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	name := fmt.Sprintf("tax-%s-%s.csv", from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	h.writeCSV(w, r, name, func(buf *bytes.Buffer) error {
		return export.Tax(buf, td, h.formatter)
	})
}
