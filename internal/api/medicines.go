package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"medstore/m/domain"
)

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	meds, err := h.inventory.Medicines(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	out := make([]domain.Medicine, 0, len(meds))
	for _, m := range meds {
		if query == "" ||
			strings.Contains(strings.ToLower(m.Name), query) ||
			strings.Contains(strings.ToLower(m.Manufacturer), query) ||
			strings.Contains(strings.ToLower(m.Category), query) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	med, err := h.inventory.Medicine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

// Inventory views

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.Inventory(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) expiringMedicines(w http.ResponseWriter, r *http.Request) {
	days := 0
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive number")
			return
		}
		days = n
	}
	items, err := h.inventory.ExpiringMedicines(r.Context(), days)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) expiredMedicines(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.ExpiredMedicines(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) lowStockMedicines(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStockMedicines(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(items))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
