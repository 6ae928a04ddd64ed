package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstore/m/domain"
	"medstore/m/internal/database"
	"medstore/m/internal/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return New(db)
}

func date(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleMedicine() *domain.Medicine {
	now := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	return &domain.Medicine{
		ID:            "med-1",
		Name:          "Paracetamol 500",
		Manufacturer:  "Cipla",
		Category:      "Analgesic",
		BatchNo:       "B1",
		ExpiryDate:    date("2027-03-31"),
		Supplier:      "Sun Distributors",
		IsScheduleH:   true,
		Price:         decimal.RequireFromString("5.50"),
		MRP:           decimal.RequireFromString("8.25"),
		StockQuantity: 100,
		MinStockLevel: 10,
		GSTRate:       decimal.NewFromInt(12),
		Lots: []domain.Lot{{
			ID:            "lot-1",
			MedicineID:    "med-1",
			BatchNo:       "B1",
			ExpiryDate:    date("2027-03-31"),
			Quantity:      100,
			PurchasePrice: decimal.RequireFromString("5.50"),
			PurchaseDate:  now,
			Supplier:      "Sun Distributors",
			GSTRate:       decimal.NewFromInt(12),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMedicineRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Medicines()

	m := sampleMedicine()
	require.NoError(t, repo.Create(ctx, m))

	got, err := repo.Get(ctx, "med-1")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 500", got.Name)
	assert.True(t, got.IsScheduleH)
	assert.True(t, got.Price.Equal(m.Price))
	assert.True(t, got.MRP.Equal(m.MRP))
	assert.True(t, got.GSTRate.Equal(m.GSTRate))
	assert.Equal(t, date("2027-03-31"), got.ExpiryDate)
	assert.True(t, got.CreatedAt.Equal(m.CreatedAt))
	require.Len(t, got.Lots, 1)
	assert.Equal(t, int64(100), got.Lots[0].Quantity)

	byName, err := repo.FindByName(ctx, "  paracetamol 500 ")
	require.NoError(t, err)
	assert.Equal(t, "med-1", byName.ID)
}

func TestMedicineRepo_UpdateReplacesLots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Medicines()

	m := sampleMedicine()
	require.NoError(t, repo.Create(ctx, m))

	m.StockQuantity = 150
	m.Lots[0].Quantity = 40
	m.Lots = append(m.Lots, domain.Lot{
		ID: "lot-2", MedicineID: m.ID, BatchNo: "B2", Quantity: 50,
		PurchasePrice: decimal.RequireFromString("5.75"), PurchaseDate: m.CreatedAt.Add(time.Hour),
		GSTRate: decimal.NewFromInt(5),
	})
	require.NoError(t, repo.Update(ctx, m))

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.StockQuantity)
	require.Len(t, got.Lots, 2)
	assert.Equal(t, "lot-1", got.Lots[0].ID)
	assert.Equal(t, int64(40), got.Lots[0].Quantity)
	assert.Equal(t, "B2", got.Lots[1].BatchNo)
	assert.True(t, got.Lots[1].ExpiryDate.IsZero())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lots, 2)
}

func TestMedicineRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Medicines().Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.Medicines().Update(ctx, &domain.Medicine{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionRepo_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Transactions()

	sale := &domain.Transaction{
		ID:   "t-sale",
		Type: domain.TransactionSell,
		Items: []domain.TransactionItem{{
			MedicineID: "med-1", MedicineName: "Paracetamol 500", Quantity: 2,
			Price: decimal.RequireFromString("25.50"), BatchNo: "B1", ExpiryDate: date("2027-03-31"),
			GSTRate: decimal.NewFromInt(18),
		}},
		TotalAmount:       decimal.RequireFromString("60.18"),
		GSTAmount:         decimal.RequireFromString("9.18"),
		Date:              time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC),
		PaymentMethod:     domain.PaymentUPI,
		Customer:          &domain.CustomerInfo{Name: "Asha"},
		PrescriptionFiles: []string{"rx/1.jpg"},
	}
	purchase := &domain.Transaction{
		ID:            "t-purchase",
		Type:          domain.TransactionPurchase,
		Items:         []domain.TransactionItem{{MedicineID: "med-1", MedicineName: "Paracetamol 500", Quantity: 100, Price: decimal.RequireFromString("5.50")}},
		TotalAmount:   decimal.RequireFromString("616"),
		GSTAmount:     decimal.RequireFromString("66"),
		Date:          time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		PaymentMethod: domain.PaymentCash,
		Supplier:      &domain.SupplierRef{ID: "s-1", Name: "Sun Distributors"},
		InvoiceNumber: "INV-7",
	}
	require.NoError(t, repo.Append(ctx, sale))
	require.NoError(t, repo.Append(ctx, purchase))

	all, err := repo.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t-purchase", all[0].ID, "ordered by date")
	assert.Equal(t, "Sun Distributors", all[0].Supplier.Name)
	assert.Nil(t, all[0].Customer)
	assert.Empty(t, all[0].PrescriptionFiles)

	got, err := repo.Get(ctx, "t-sale")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionSell, got.Type)
	assert.True(t, got.TotalAmount.Equal(sale.TotalAmount))
	assert.Equal(t, []string{"rx/1.jpg"}, got.PrescriptionFiles)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, "Asha", got.Customer.Name)

	october, err := repo.List(ctx, date("2026-10-01"), date("2026-10-31"))
	require.NoError(t, err)
	require.Len(t, october, 1)
	assert.Equal(t, "t-sale", october[0].ID)
	require.Len(t, october[0].Items, 1)
	assert.Equal(t, int64(2), october[0].Items[0].Quantity)
}

func TestTransactionRepo_ListBindsOnlyRangeBounds(t *testing.T) {
	ctx := context.Background()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	store := New(sqlx.NewDb(mockDB, "sqlmock"))

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 31, 23, 59, 59, 0, time.UTC)
	txns := sqlmock.NewRows([]string{"id", "type", "total_amount", "gst_amount", "date", "payment_method"})
	for i := 0; i < 500; i++ {
		txns.AddRow(fmt.Sprintf("t-%03d", i), "sell", "10", "1", formatTimestamp(from.Add(time.Duration(i)*time.Minute)), "cash")
	}
	items := sqlmock.NewRows([]string{"transaction_id", "line_no", "medicine_id", "medicine_name", "quantity", "price", "batch_no", "expiry_date", "gst_rate"}).
		AddRow("t-007", 0, "med-1", "Paracetamol 500", 1, "10", "B1", "", "10")

	mock.ExpectQuery(`SELECT t\.\* FROM transactions t WHERE`).
		WithArgs(formatTimestamp(from), formatTimestamp(to)).
		WillReturnRows(txns)
	mock.ExpectQuery(`SELECT i\.\* FROM transaction_items i JOIN transactions t`).
		WithArgs(formatTimestamp(from), formatTimestamp(to)).
		WillReturnRows(items)

	got, err := store.Transactions().List(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, got, 500)
	assert.Len(t, got[7].Items, 1)
	assert.Empty(t, got[8].Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSupplierRepo(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.Suppliers()

	s := &domain.Supplier{ID: "s-1", Name: "Sun Distributors", Address: "Pune", ContactNumber: "98200", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, s))

	found, err := repo.FindByName(ctx, "SUN DISTRIBUTORS")
	require.NoError(t, err)
	assert.Equal(t, "s-1", found.ID)

	dup := &domain.Supplier{ID: "s-2", Name: "sun distributors", CreatedAt: time.Now()}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrAlreadyExists)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserRepo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := store.Users()

	n, err := users.CountByRole(ctx, domain.RoleOwner)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Username: "asha", Email: "Asha@example.com", Password: "h1", Role: domain.RoleOwner, CreatedAt: "2026-10-01T09:30:00Z"}))
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u2", Username: "ravi", Email: "ravi@example.com", Password: "h2", Role: domain.RoleStaff, CreatedAt: "2026-10-01T09:31:00Z"}))
	assert.ErrorIs(t, users.Create(ctx, &domain.User{ID: "u3", Username: "dup", Email: "asha@example.com", Role: domain.RoleStaff}), domain.ErrAlreadyExists)

	n, err = users.CountByRole(ctx, domain.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, users.UpdatePassword(ctx, "u1", "h9"))
	got, err := users.FindByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h9", got.Password)
	assert.ErrorIs(t, users.UpdatePassword(ctx, "missing", "x"), domain.ErrNotFound)
}

func TestStateRepo(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := store.State()

	var profile domain.StoreProfile
	ok, err := repo.Get(ctx, domain.StateUserProfile, &profile)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, domain.StateUserProfile, domain.StoreProfile{StoreName: "City Medicals"}))
	require.NoError(t, repo.Put(ctx, domain.StateUserProfile, domain.StoreProfile{StoreName: "City Medicals & Surgicals"}))

	ok, err = repo.Get(ctx, domain.StateUserProfile, &profile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "City Medicals & Surgicals", profile.StoreName)
}

func TestStateRepo_MalformedJSON(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.db.Exec(`INSERT INTO app_state (state_key, value, updated_at) VALUES ('appSettings', '{not json', '')`)
	require.NoError(t, err)

	var settings domain.AppSettings
	_, err = store.State().Get(ctx, domain.StateAppSettings, &settings)
	assert.ErrorIs(t, err, domain.ErrCorruptState)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(r domain.Repositories) error {
		if err := r.Medicines().Create(ctx, sampleMedicine()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Medicines().Get(ctx, "med-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithinTx_ExecFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	store := New(sqlx.NewDb(mockDB, "sqlmock"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = store.WithinTx(ctx, func(r domain.Repositories) error {
		return r.Transactions().Append(ctx, &domain.Transaction{ID: "t-1", Type: domain.TransactionSell})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
