package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/gst"
)

// PurchaseSupplier identifies the seller on a purchase invoice.
type PurchaseSupplier struct {
	Name          string `json:"name" validate:"required"`
	ContactNumber string `json:"contact_number" validate:"required"`
	Address       string `json:"address" validate:"required"`
	GSTINNumber   string `json:"gstin_number"`
}

// PurchaseLine is one invoice line. MedicineID selects an existing medicine;
// otherwise Name is matched case-insensitively and a new medicine is created
// when nothing matches.
type PurchaseLine struct {
	MedicineID    string          `json:"medicine_id"`
	Name          string          `json:"name" validate:"required_without=MedicineID"`
	Manufacturer  string          `json:"manufacturer"`
	Category      string          `json:"category"`
	IsScheduleH   bool            `json:"is_schedule_h"`
	MinStockLevel int64           `json:"min_stock_level" validate:"gte=0"`
	Quantity      int64           `json:"quantity" validate:"gt=0"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gt=0"`
	MRP           decimal.Decimal `json:"mrp" validate:"gt=0"`
	BatchNumber   string          `json:"batch_number" validate:"required"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	GSTRate       decimal.Decimal `json:"gst_rate" validate:"gte=0,lte=100"`
}

func (l PurchaseLine) total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type PurchaseRequest struct {
	Supplier      PurchaseSupplier     `json:"supplier"`
	InvoiceNumber string               `json:"invoice_number" validate:"required"`
	Date          time.Time            `json:"date"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card upi"`
	Items         []PurchaseLine       `json:"items" validate:"required,min=1,dive"`
}

func (r *PurchaseRequest) validate() error {
	verr := validateStruct(r)
	for i, item := range r.Items {
		if item.ExpiryDate.IsZero() {
			verr.Add(fmt.Sprintf("items[%d].expiry_date", i), "This field is required")
		}
	}
	return verr.OrNil()
}

// RecordPurchase stocks every line, creating medicines and the supplier when
// they are unknown, and appends a purchase transaction. All writes happen in
// one unit of work.
func (s *Service) RecordPurchase(ctx context.Context, req PurchaseRequest) (*domain.Transaction, gst.Summary, error) {
	if err := req.validate(); err != nil {
		return nil, gst.Summary{}, err
	}

	now := s.now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	payment := req.PaymentMethod
	if payment == "" {
		payment = domain.PaymentCash
	}

	breakdowns := make([]gst.Breakdown, 0, len(req.Items))
	for _, item := range req.Items {
		breakdowns = append(breakdowns, gst.Line(item.total(), item.GSTRate))
	}
	summary := gst.Summarize(breakdowns)

	txn := &domain.Transaction{
		ID:            uuid.NewString(),
		Type:          domain.TransactionPurchase,
		Items:         make([]domain.TransactionItem, 0, len(req.Items)),
		TotalAmount:   summary.GrandTotal,
		GSTAmount:     summary.TotalGST,
		Date:          date,
		PaymentMethod: payment,
		InvoiceNumber: req.InvoiceNumber,
	}

	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		settings, err := s.settings(ctx, repos)
		if err != nil {
			return err
		}
		supplier, err := s.ensureSupplier(ctx, repos, req.Supplier, now)
		if err != nil {
			return err
		}
		txn.Supplier = &domain.SupplierRef{ID: supplier.ID, Name: supplier.Name}

		for _, item := range req.Items {
			med, err := s.stockLine(ctx, repos, item, supplier.Name, date, now, settings.DefaultMinStockLevel)
			if err != nil {
				return err
			}
			txn.Items = append(txn.Items, domain.TransactionItem{
				MedicineID:   med.ID,
				MedicineName: med.Name,
				Quantity:     item.Quantity,
				Price:        item.UnitPrice,
				BatchNo:      item.BatchNumber,
				ExpiryDate:   item.ExpiryDate,
				GSTRate:      item.GSTRate,
			})
		}

		if err := txn.Validate(); err != nil {
			return err
		}
		return repos.Transactions().Append(ctx, txn)
	})
	if err != nil {
		return nil, gst.Summary{}, err
	}

	s.observe(txn)
	s.log.Info("purchase recorded",
		zap.String("transaction_id", txn.ID),
		zap.String("supplier", txn.Supplier.Name),
		zap.String("invoice", txn.InvoiceNumber),
		zap.Int("items", len(txn.Items)),
		zap.String("total", txn.TotalAmount.StringFixed(2)),
		zap.String("gst", txn.GSTAmount.StringFixed(2)),
	)
	return txn, summary, nil
}

func (s *Service) ensureSupplier(ctx context.Context, repos domain.Repositories, in PurchaseSupplier, now time.Time) (*domain.Supplier, error) {
	existing, err := repos.Suppliers().FindByName(ctx, in.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find supplier: %w", err)
	}
	sup := &domain.Supplier{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Address:       in.Address,
		ContactNumber: in.ContactNumber,
		GSTINNumber:   in.GSTINNumber,
		CreatedAt:     now,
	}
	if err := repos.Suppliers().Create(ctx, sup); err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	s.log.Info("supplier created", zap.String("supplier_id", sup.ID), zap.String("name", sup.Name))
	return sup, nil
}

// resolveMedicine finds the medicine a line refers to. It returns nil and no
// error when the line names a medicine that does not exist yet.
func resolveMedicine(ctx context.Context, repos domain.Repositories, id, name string) (*domain.Medicine, error) {
	if id != "" {
		med, err := repos.Medicines().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("medicine %s: %w", id, err)
		}
		return med, nil
	}
	med, err := repos.Medicines().FindByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find medicine %q: %w", name, err)
	}
	return med, nil
}

func (s *Service) stockLine(ctx context.Context, repos domain.Repositories, item PurchaseLine, supplier string, date, now time.Time, minStock int64) (*domain.Medicine, error) {
	med, err := resolveMedicine(ctx, repos, item.MedicineID, item.Name)
	if err != nil {
		return nil, err
	}

	lot := domain.Lot{
		ID:            uuid.NewString(),
		BatchNo:       item.BatchNumber,
		ExpiryDate:    item.ExpiryDate,
		Quantity:      item.Quantity,
		PurchasePrice: item.UnitPrice,
		PurchaseDate:  date,
		Supplier:      supplier,
		GSTRate:       item.GSTRate,
	}

	if med == nil {
		if item.MinStockLevel > 0 {
			minStock = item.MinStockLevel
		}
		med = &domain.Medicine{
			ID:            uuid.NewString(),
			Name:          item.Name,
			Manufacturer:  item.Manufacturer,
			Category:      item.Category,
			BatchNo:       item.BatchNumber,
			ExpiryDate:    item.ExpiryDate,
			Supplier:      supplier,
			IsScheduleH:   item.IsScheduleH,
			Price:         item.UnitPrice,
			MRP:           item.MRP,
			StockQuantity: item.Quantity,
			MinStockLevel: minStock,
			GSTRate:       item.GSTRate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		lot.MedicineID = med.ID
		med.Lots = []domain.Lot{lot}
		if err := repos.Medicines().Create(ctx, med); err != nil {
			return nil, fmt.Errorf("create medicine %q: %w", med.Name, err)
		}
		return med, nil
	}

	s.restock(med, lot, now)
	if err := repos.Medicines().Update(ctx, med); err != nil {
		return nil, fmt.Errorf("update medicine %q: %w", med.Name, err)
	}
	return med, nil
}

// restock appends lot and raises the stock counter. A differing GST rate
// replaces the medicine's rate for every later sale; the lot keeps its own.
func (s *Service) restock(med *domain.Medicine, lot domain.Lot, now time.Time) {
	lot.MedicineID = med.ID
	med.Lots = append(med.Lots, lot)
	med.StockQuantity += lot.Quantity
	if !med.GSTRate.Equal(lot.GSTRate) {
		s.log.Warn("gst rate changed on restock",
			zap.String("medicine_id", med.ID),
			zap.String("medicine", med.Name),
			zap.String("old_rate", med.GSTRate.String()),
			zap.String("new_rate", lot.GSTRate.String()),
			zap.Int64("stock_at_old_rate", med.StockQuantity-lot.Quantity),
		)
		med.GSTRate = lot.GSTRate
	}
	med.UpdatedAt = now
}
