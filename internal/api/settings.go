package api

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/logger"
)

var hundred = decimal.NewFromInt(100)

// mergeSettings fills zero fields of stored with the configured defaults.
func mergeSettings(stored, defaults domain.AppSettings) domain.AppSettings {
	if stored.DefaultGSTRate.IsZero() {
		stored.DefaultGSTRate = defaults.DefaultGSTRate
	}
	if stored.DefaultMinStockLevel == 0 {
		stored.DefaultMinStockLevel = defaults.DefaultMinStockLevel
	}
	if stored.ExpiryAlertDays == 0 {
		stored.ExpiryAlertDays = defaults.ExpiryAlertDays
	}
	if stored.CurrencySymbol == "" {
		stored.CurrencySymbol = defaults.CurrencySymbol
	}
	if stored.Locale == "" {
		stored.Locale = defaults.Locale
	}
	return stored
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	var stored domain.AppSettings
	if _, err := h.store.State().Get(r.Context(), domain.StateAppSettings, &stored); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mergeSettings(stored, h.defaults))
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	var req domain.AppSettings
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	verr := domain.NewValidationError()
	if req.DefaultGSTRate.IsNegative() || req.DefaultGSTRate.GreaterThan(hundred) {
		verr.Add("default_gst_rate", "Must be between 0 and 100")
	}
	if req.DefaultMinStockLevel < 0 {
		verr.Add("default_min_stock_level", "Must not be negative")
	}
	if req.ExpiryAlertDays < 0 {
		verr.Add("expiry_alert_days", "Must not be negative")
	}
	if verr.HasErrors() {
		h.respondDomainError(w, r, verr)
		return
	}
	if err := h.store.State().Put(r.Context(), domain.StateAppSettings, req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	logger.FromContext(r.Context(), h.log).Info("settings updated",
		zap.String("default_gst_rate", req.DefaultGSTRate.String()),
		zap.Int("expiry_alert_days", req.ExpiryAlertDays),
	)
	respondJSON(w, http.StatusOK, mergeSettings(req, h.defaults))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.StoreProfile
	if _, err := h.store.State().Get(r.Context(), domain.StateUserProfile, &profile); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *Handler) putProfile(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	var req domain.StoreProfile
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	verr := domain.NewValidationError()
	if strings.TrimSpace(req.StoreName) == "" {
		verr.Add("store_name", "This field is required")
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			verr.Add("email", "Must be a valid email address")
		}
	}
	if req.GSTINNumber != "" && len(strings.TrimSpace(req.GSTINNumber)) != 15 {
		verr.Add("gstin_number", "Must be exactly 15 characters")
	}
	if verr.HasErrors() {
		h.respondDomainError(w, r, verr)
		return
	}
	req.GSTINNumber = strings.ToUpper(strings.TrimSpace(req.GSTINNumber))
	if err := h.store.State().Put(r.Context(), domain.StateUserProfile, req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}
