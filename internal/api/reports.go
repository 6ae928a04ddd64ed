package api

import (
	"net/http"

	"medstore/m/domain"
)

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (h *Handler) taxReport(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, td)
}

func (h *Handler) monthlyTrend(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	points, err := h.reports.MonthlyTrend(r.Context(), from, to)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (h *Handler) rateSlabs(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	slabs, err := h.reports.RateSlabs(r.Context(), from, to)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, slabs)
}
