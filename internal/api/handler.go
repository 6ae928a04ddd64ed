package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/export"
	"medstore/m/internal/inventory"
	"medstore/m/internal/logger"
	"medstore/m/internal/metrics"
	"medstore/m/internal/ocr"
	"medstore/m/internal/report"
	"medstore/m/internal/storage"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Deps are the collaborators the HTTP layer needs. OCR may be nil when no
// endpoint is configured.
type Deps struct {
	Store          domain.Store
	Inventory      *inventory.Service
	Reports        *report.Service
	OCR            *ocr.Client
	Files          storage.Store
	Formatter      *export.Formatter
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Secret         string
	TokenTTL       time.Duration
	AllowedOrigins []string
	// Defaults fill unset fields of the stored AppSettings.
	Defaults domain.AppSettings
	Now      func() time.Time
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store     domain.Store
	inventory *inventory.Service
	reports   *report.Service
	ocr       *ocr.Client
	files     storage.Store
	formatter *export.Formatter
	metrics   *metrics.Metrics
	log       *zap.Logger
	secret    string
	tokenTTL  time.Duration
	origins   []string
	defaults  domain.AppSettings
	now       func() time.Time
}

// New constructs a Handler.
func New(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		inventory: d.Inventory,
		reports:   d.Reports,
		ocr:       d.OCR,
		files:     d.Files,
		formatter: d.Formatter,
		metrics:   d.Metrics,
		log:       d.Logger,
		secret:    d.Secret,
		tokenTTL:  d.TokenTTL,
		origins:   d.AllowedOrigins,
		defaults:  d.Defaults,
		now:       d.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = 24 * time.Hour
	}
	if h.now == nil {
		h.now = time.Now
	}
	if len(h.origins) == 0 {
		h.origins = []string{"*"}
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(h.log))
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.listMedicines)
			r.Get("/{id}", h.getMedicine)
		})

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Get("/expiring", h.expiringMedicines)
			r.Get("/expired", h.expiredMedicines)
			r.Get("/low-stock", h.lowStockMedicines)
		})

		pr.Post("/purchases", h.createPurchase)
		pr.Post("/sales", h.createSale)

		pr.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Get("/{id}", h.getTransaction)
		})

		pr.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Post("/", h.createSupplier)
			r.Get("/{id}", h.getSupplier)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.dashboard)
			r.Get("/tax", h.taxReport)
			r.Get("/monthly", h.monthlyTrend)
			r.Get("/slabs", h.rateSlabs)
		})

		pr.Route("/import", func(r chi.Router) {
			r.Post("/csv", h.importCSV)
			r.Post("/ocr", h.importOCR)
			r.Get("/history", h.importHistory)
		})

		pr.Route("/export", func(r chi.Router) {
			r.Get("/inventory.csv", h.exportInventory)
			r.Get("/transactions.csv", h.exportTransactions)
			r.Get("/tax.csv", h.exportTax)
		})

		pr.Route("/settings", func(r chi.Router) {
			r.Get("/", h.getSettings)
			r.Put("/", h.putSettings)
		})
		pr.Route("/profile", func(r chi.Router) {
			r.Get("/", h.getProfile)
			r.Put("/", h.putProfile)
		})

		pr.Route("/prescriptions", func(r chi.Router) {
			r.Post("/", h.uploadPrescription)
			r.Get("/{key}", h.getPrescription)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Stock  *stockDetail      `json:"stock,omitempty"`
}

type stockDetail struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Requested    int64  `json:"requested"`
	Available    int64  `json:"available"`
}

var statusByCode = map[string]int{
	domain.ErrNotFound.Code:             http.StatusNotFound,
	domain.ErrAlreadyExists.Code:        http.StatusConflict,
	domain.ErrInvalidInput.Code:         http.StatusBadRequest,
	domain.ErrInsufficientStock.Code:    http.StatusConflict,
	domain.ErrPrescriptionRequired.Code: http.StatusUnprocessableEntity,
	domain.ErrEmptyCart.Code:            http.StatusBadRequest,
	domain.ErrUnauthorized.Code:         http.StatusUnauthorized,
	domain.ErrForbidden.Code:            http.StatusForbidden,
}

// respondDomainError maps service errors to a status and body. Unknown errors
// are logged and reported as 500 without detail.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Code: domain.ErrInvalidInput.Code, Fields: verr.Fields})
		return
	}
	var serr *domain.StockError
	if errors.As(err, &serr) {
		respondJSON(w, http.StatusConflict, errorBody{
			Error: serr.Error(),
			Code:  domain.ErrInsufficientStock.Code,
			Stock: &stockDetail{MedicineID: serr.MedicineID, MedicineName: serr.MedicineName, Requested: serr.Requested, Available: serr.Available},
		})
		return
	}
	var oerr *ocr.Error
	if errors.As(err, &oerr) {
		respondJSON(w, http.StatusBadGateway, errorBody{Error: oerr.Message, Code: "OCR_FAILED"})
		return
	}
	code := domain.CodeOf(err)
	if status, ok := statusByCode[code]; ok {
		respondJSON(w, status, errorBody{Error: err.Error(), Code: code})
		return
	}
	logger.FromContext(r.Context(), h.log).Error("request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "INTERNAL"})
}

// dateRange reads ?from= and ?to= as calendar dates. The range defaults to
// the current month up to today.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	now := h.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now
	verr := domain.NewValidationError()
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.ParseInLocation(domain.DateLayout, s, now.Location())
		if err != nil {
			verr.Add("from", "must be a date in YYYY-MM-DD format")
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.ParseInLocation(domain.DateLayout, s, now.Location())
		if err != nil {
			verr.Add("to", "must be a date in YYYY-MM-DD format")
		}
		to = t
	}
	return from, to, verr.OrNil()
}

func parseDate(verr *domain.ValidationError, field, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
	}
	return t
}
