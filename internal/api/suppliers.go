package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medstore/m/domain"
)

type supplierRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactNumber string `json:"contact_number"`
	GSTINNumber   string `json:"gstin_number"`
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.store.Suppliers().List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(suppliers))
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	verr := domain.NewValidationError()
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "This field is required")
	}
	if strings.TrimSpace(req.ContactNumber) == "" {
		verr.Add("contact_number", "This field is required")
	}
	if strings.TrimSpace(req.Address) == "" {
		verr.Add("address", "This field is required")
	}
	if g := strings.TrimSpace(req.GSTINNumber); g != "" && len(g) != 15 {
		verr.Add("gstin_number", "Must be exactly 15 characters")
	}
	if verr.HasErrors() {
		h.respondDomainError(w, r, verr)
		return
	}

	sup := &domain.Supplier{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Address:       strings.TrimSpace(req.Address),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		GSTINNumber:   strings.ToUpper(strings.TrimSpace(req.GSTINNumber)),
		CreatedAt:     h.now(),
	}
	if err := h.store.Suppliers().Create(r.Context(), sup); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sup)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.store.Suppliers().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sup)
}
