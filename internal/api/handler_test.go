package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/export"
	"medstore/m/internal/inventory"
	"medstore/m/internal/metrics"
	"medstore/m/internal/report"
	"medstore/m/internal/repository/memory"
	"medstore/m/internal/storage"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	srv     *httptest.Server
	store   *memory.Store
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	now := func() time.Time { return testNow }
	m := metrics.New()
	files, err := storage.NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	formatter, err := export.NewFormatter("en-IN", "₹")
	require.NoError(t, err)

	h := New(Deps{
		Store:     store,
		Inventory: inventory.NewService(store, zap.NewNop(), inventory.Options{Now: now, Observer: m}),
		Reports:   report.NewService(store, zap.NewNop(), 30, now),
		Files:     files,
		Formatter: formatter,
		Metrics:   m,
		Secret:    "test-secret",
		Defaults: domain.AppSettings{
			DefaultGSTRate:       decimal.NewFromInt(18),
			DefaultMinStockLevel: 10,
			ExpiryAlertDays:      30,
			CurrencySymbol:       "₹",
			Locale:               "en-IN",
		},
		Now: now,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, store: store, metrics: m}
}

func (ts *testServer) do(method, path, token string, body any) *http.Response {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(ts.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) upload(path, token, filename, contentType string, content []byte) *http.Response {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	require.NoError(ts.t, err)
	_, err = part.Write(content)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) register(email, role string) string {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": strings.Split(email, "@")[0],
		"email":    email,
		"password": "sup3rsecret",
		"role":     role,
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode)
	return decode[authResponse](ts.t, resp).Token
}

func purchaseBody(qty int64) map[string]any {
	return map[string]any{
		"supplier": map[string]any{
			"name":           "Acme Pharma",
			"contact_number": "9876543210",
			"address":        "12 MG Road",
		},
		"invoice_number": "INV-1",
		"payment_method": "cash",
		"items": []map[string]any{{
			"name":          "Amoxicillin 250",
			"is_schedule_h": true,
			"quantity":      qty,
			"unit_price":    "5.50",
			"mrp":           "25.50",
			"batch_number":  "AMX-1",
			"expiry_date":   "2025-12-31",
			"gst_rate":      "12",
		}},
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "dup", "email": "OWNER@example.com", "password": "sup3rsecret", "role": "owner",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "x", "email": "x@example.com", "password": "short", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "owner@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "owner@example.com", "password": "sup3rsecret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[authResponse](t, resp)
	assert.NotEmpty(t, login.Token)
	assert.Empty(t, login.User.Password)

	resp = ts.do(http.MethodGet, "/medicines", login.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterOwner(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.register("staff@example.com", domain.RoleStaff)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	second := map[string]string{
		"username": "mallory", "email": "mallory@example.com", "password": "sup3rsecret", "role": "owner",
	}
	resp := ts.do(http.MethodPost, "/auth/register", "", second)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(http.MethodPost, "/auth/register", staff, second)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/auth/register", owner, second)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.RoleOwner, decode[authResponse](t, resp).User.Role)

	ts.register("helper@example.com", domain.RoleStaff)
}

func TestProtectedRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/medicines", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/medicines", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	staff := ts.register("staff@example.com", domain.RoleStaff)
	for _, path := range []string{"/reports/tax", "/reports/monthly", "/export/inventory.csv"} {
		resp = ts.do(http.MethodGet, path, staff, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}
	resp = ts.do(http.MethodPut, "/settings", staff, domain.AppSettings{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/reports/dashboard", staff, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPurchaseSaleAndTax(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.do(http.MethodPost, "/purchases", owner, purchaseBody(100))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	purchase := decode[purchaseResponse](t, resp)
	assert.True(t, purchase.Transaction.TotalAmount.Equal(decimal.NewFromInt(616)), purchase.Transaction.TotalAmount.String())
	assert.True(t, purchase.Transaction.GSTAmount.Equal(decimal.NewFromInt(66)))
	medID := purchase.Transaction.Items[0].MedicineID

	sale := map[string]any{
		"items":          []map[string]any{{"medicine_id": medID, "quantity": 2}},
		"payment_method": "upi",
	}
	resp = ts.do(http.MethodPost, "/sales", owner, sale)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.ErrPrescriptionRequired.Code, decode[errorBody](t, resp).Code)

	sale["skip_prescription"] = true
	resp = ts.do(http.MethodPost, "/sales", owner, sale)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txn := decode[domain.Transaction](t, resp)
	assert.True(t, txn.PrescriptionSkipped)
	assert.True(t, txn.TotalAmount.Equal(decimal.RequireFromString("57.12")), txn.TotalAmount.String())

	resp = ts.do(http.MethodGet, "/medicines/"+medID, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(98), decode[domain.Medicine](t, resp).StockQuantity)

	resp = ts.do(http.MethodGet, "/reports/tax", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	td := decode[domain.TaxData](t, resp)
	assert.Equal(t, 1, td.SalesCount)
	assert.Equal(t, 1, td.PurchaseCount)
	assert.True(t, td.GSTCollected.Equal(decimal.RequireFromString("6.12")), td.GSTCollected.String())
	assert.True(t, td.GSTPaid.Equal(decimal.NewFromInt(66)))
	assert.Equal(t, report.LiabilityRefundable, td.Liability)

	resp = ts.do(http.MethodGet, "/transactions?type=sell", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Transaction](t, resp), 1)

	resp = ts.do(http.MethodGet, "/suppliers", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Supplier](t, resp), 1)
}

func TestSaleErrors(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.do(http.MethodPost, "/purchases", owner, purchaseBody(3))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	medID := decode[purchaseResponse](t, resp).Transaction.Items[0].MedicineID

	resp = ts.do(http.MethodPost, "/sales", owner, map[string]any{
		"items":             []map[string]any{{"medicine_id": medID, "quantity": 5}},
		"payment_method":    "cash",
		"skip_prescription": true,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorBody](t, resp)
	require.NotNil(t, body.Stock)
	assert.Equal(t, int64(3), body.Stock.Available)

	resp = ts.do(http.MethodPost, "/sales", owner, map[string]any{"items": []any{}, "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.ErrEmptyCart.Code, decode[errorBody](t, resp).Code)

	resp = ts.do(http.MethodPost, "/sales", owner, map[string]any{
		"items":              []map[string]any{{"medicine_id": medID, "quantity": 1}},
		"payment_method":     "cash",
		"prescription_files": []string{"00000000-0000-0000-0000-000000000000.jpg"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Fields, "prescription_files[0]")
}

func TestPurchaseValidation(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	body := purchaseBody(10)
	body["items"].([]map[string]any)[0]["expiry_date"] = "31/12/2025"
	resp := ts.do(http.MethodPost, "/purchases", owner, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Fields, "items[0].expiry_date")

	body = purchaseBody(0)
	body["invoice_number"] = ""
	resp = ts.do(http.MethodPost, "/purchases", owner, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := decode[errorBody](t, resp).Fields
	assert.Contains(t, fields, "invoice_number")
	assert.Contains(t, fields, "items[0].quantity")

	resp = ts.do(http.MethodPost, "/purchases", owner, map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrescriptionUploadAndSale(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.upload("/prescriptions", owner, "rx.png", "image/png", []byte("fake-png"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key := decode[map[string]string](t, resp)["key"]
	require.True(t, storage.ValidKey(key), key)

	resp = ts.do(http.MethodGet, "/prescriptions/"+key, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "fake-png", string(raw))

	resp = ts.do(http.MethodGet, "/prescriptions/passwd", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/purchases", owner, purchaseBody(10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	medID := decode[purchaseResponse](t, resp).Transaction.Items[0].MedicineID

	resp = ts.do(http.MethodPost, "/sales", owner, map[string]any{
		"items":              []map[string]any{{"medicine_id": medID, "quantity": 1}},
		"payment_method":     "card",
		"prescription_files": []string{key},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txn := decode[domain.Transaction](t, resp)
	assert.Equal(t, []string{key}, txn.PrescriptionFiles)
	assert.False(t, txn.PrescriptionSkipped)
}

func TestImportCSV(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.register("staff@example.com", domain.RoleStaff)

	csvDoc := "Medicine Name,Batch No,Expiry,Qty,MRP,GST %\n" +
		"Dolo 650,D1,12/2026,40,30.00,12\n" +
		"Broken,B2,not-a-date,5,10,5\n"

	resp := ts.upload("/import/csv?dry_run=true", staff, "stock.csv", "text/csv", []byte(csvDoc))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dry := decode[importResponse](t, resp)
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.Medicines, 1)
	assert.Len(t, dry.Errors, 1)

	resp = ts.upload("/import/csv", staff, "stock.csv", "text/csv", []byte(csvDoc))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[importResponse](t, resp)
	require.NotNil(t, out.Upload)
	assert.Equal(t, 1, out.Upload.Rows)
	assert.Equal(t, "csv", out.Upload.Source)

	resp = ts.do(http.MethodGet, "/medicines?query=dolo", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meds := decode[[]domain.Medicine](t, resp)
	require.Len(t, meds, 1)
	assert.Equal(t, int64(40), meds[0].StockQuantity)

	resp = ts.do(http.MethodGet, "/import/history", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.BulkUpload](t, resp), 1)

	resp = ts.upload("/import/ocr", staff, "scan.png", "image/png", []byte("img"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExports(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)
	resp := ts.do(http.MethodPost, "/purchases", owner, purchaseBody(100))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, path := range []string{"/export/inventory.csv", "/export/transactions.csv", "/export/tax.csv"} {
		resp = ts.do(http.MethodGet, path, owner, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "₹", path)
	}

	resp = ts.do(http.MethodGet, "/export/tax.csv?from=2024-06-20&to=2024-06-01", owner, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/export/tax.csv?from=June", owner, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettingsAndProfile(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.do(http.MethodGet, "/settings", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settings := decode[domain.AppSettings](t, resp)
	assert.True(t, settings.DefaultGSTRate.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, 30, settings.ExpiryAlertDays)

	resp = ts.do(http.MethodPut, "/settings", owner, domain.AppSettings{ExpiryAlertDays: 60, DefaultGSTRate: decimal.NewFromInt(5)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/settings", owner, nil)
	settings = decode[domain.AppSettings](t, resp)
	assert.Equal(t, 60, settings.ExpiryAlertDays)
	assert.True(t, settings.DefaultGSTRate.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, int64(10), settings.DefaultMinStockLevel)

	resp = ts.do(http.MethodPut, "/settings", owner, domain.AppSettings{DefaultGSTRate: decimal.NewFromInt(120)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(http.MethodPut, "/profile", owner, domain.StoreProfile{StoreName: "City Medicals", Email: "bad"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Fields, "email")

	resp = ts.do(http.MethodPut, "/profile", owner, domain.StoreProfile{StoreName: "City Medicals", GSTINNumber: "27abcde1234f1z5"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/profile", owner, nil)
	assert.Equal(t, "27ABCDE1234F1Z5", decode[domain.StoreProfile](t, resp).GSTINNumber)
}

func TestSettingsDriveSaleTaxAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	body := purchaseBody(10)
	body["items"] = []map[string]any{{
		"name":         "ORS Sachet",
		"quantity":     10,
		"unit_price":   "60",
		"mrp":          "100",
		"batch_number": "ORS-1",
		"expiry_date":  "2024-07-31",
		"gst_rate":     "0",
	}}
	resp := ts.do(http.MethodPost, "/purchases", owner, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	medID := decode[purchaseResponse](t, resp).Transaction.Items[0].MedicineID

	resp = ts.do(http.MethodGet, "/reports/dashboard", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[report.DashboardData](t, resp).Expiring)

	resp = ts.do(http.MethodPut, "/settings", owner, domain.AppSettings{ExpiryAlertDays: 60, DefaultGSTRate: decimal.NewFromInt(5)})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(http.MethodPost, "/sales", owner, map[string]any{
		"items":          []map[string]any{{"medicine_id": medID, "quantity": 1}},
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txn := decode[domain.Transaction](t, resp)
	assert.True(t, txn.GSTAmount.Equal(decimal.NewFromInt(5)), txn.GSTAmount.String())
	assert.True(t, txn.TotalAmount.Equal(decimal.NewFromInt(105)), txn.TotalAmount.String())

	resp = ts.do(http.MethodGet, "/reports/dashboard", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[report.DashboardData](t, resp).Expiring, "46 days out is inside the stored 60 day window")

	resp = ts.do(http.MethodGet, "/export/inventory.csv", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), ",5%,")
}

func TestSuppliers(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)

	resp := ts.do(http.MethodPost, "/suppliers", owner, supplierRequest{Name: "Zen Distributors"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := decode[errorBody](t, resp).Fields
	assert.Contains(t, fields, "contact_number")
	assert.Contains(t, fields, "address")

	resp = ts.do(http.MethodPost, "/suppliers", owner, supplierRequest{Name: "Zen Distributors", ContactNumber: "1", Address: "Pune"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sup := decode[domain.Supplier](t, resp)

	resp = ts.do(http.MethodGet, "/suppliers/"+sup.ID, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/suppliers/missing", owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com", domain.RoleOwner)
	resp := ts.do(http.MethodPost, "/purchases", owner, purchaseBody(10))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `medstore_transactions_total{type="purchase"} 1`)
	assert.Contains(t, body, `route="/purchases"`)
}
