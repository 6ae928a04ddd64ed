package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Keys of the persisted application state documents.
const (
	StateUserProfile           = "userProfile"
	StateAppSettings           = "appSettings"
	StateBulkUploadedMedicines = "bulkUploadedMedicines"
)

// StoreProfile describes the store and its licensed operator.
type StoreProfile struct {
	OwnerName     string `json:"owner_name"`
	StoreName     string `json:"store_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	GSTINNumber   string `json:"gstin_number"`
	DrugLicenseNo string `json:"drug_license_no"`
}

// AppSettings are user-tunable defaults.
type AppSettings struct {
	DefaultGSTRate       decimal.Decimal `json:"default_gst_rate"`
	DefaultMinStockLevel int64           `json:"default_min_stock_level"`
	ExpiryAlertDays      int             `json:"expiry_alert_days"`
	CurrencySymbol       string          `json:"currency_symbol"`
	Locale               string          `json:"locale"`
}

// BulkUpload records one committed import batch.
type BulkUpload struct {
	Source      string    `json:"source"`
	MedicineIDs []string  `json:"medicine_ids"`
	Rows        int       `json:"rows"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
