package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medstore/m/domain"
)

type SaleItem struct {
	MedicineID string `json:"medicine_id" validate:"required"`
	Quantity   int64  `json:"quantity" validate:"gt=0"`
}

type SaleRequest struct {
	Items             []SaleItem           `json:"items" validate:"required,min=1,dive"`
	PaymentMethod     domain.PaymentMethod `json:"payment_method" validate:"required,oneof=cash card upi"`
	Customer          *domain.CustomerInfo `json:"customer"`
	PrescriptionFiles []string             `json:"prescription_files"`
	SkipPrescription  bool                 `json:"skip_prescription"`
}

// RecordSale checks out the requested items. Stock is read and verified
// inside the unit of work, so a line exceeding stock rejects the whole sale
// with nothing written.
func (s *Service) RecordSale(ctx context.Context, req SaleRequest) (*domain.Transaction, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := validateStruct(&req).OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:                uuid.NewString(),
		Type:              domain.TransactionSell,
		Date:              now,
		PaymentMethod:     req.PaymentMethod,
		PrescriptionFiles: req.PrescriptionFiles,
	}
	if req.Customer != nil && (req.Customer.Name != "" || req.Customer.Phone != "") {
		c := *req.Customer
		txn.Customer = &c
	}

	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		settings, err := s.settings(ctx, repos)
		if err != nil {
			return err
		}
		cart := NewCart(settings.DefaultGSTRate)
		for _, item := range req.Items {
			med, err := repos.Medicines().Get(ctx, item.MedicineID)
			if err != nil {
				return fmt.Errorf("medicine %s: %w", item.MedicineID, err)
			}
			if err := cart.Add(*med, item.Quantity); err != nil {
				return err
			}
		}

		if cart.RequiresPrescription() && len(req.PrescriptionFiles) == 0 {
			if !req.SkipPrescription {
				return domain.ErrPrescriptionRequired
			}
			txn.PrescriptionSkipped = true
			s.log.Warn("schedule H sale without prescription", zap.String("transaction_id", txn.ID))
		}

		summary := cart.Summary()
		txn.TotalAmount = summary.GrandTotal
		txn.GSTAmount = summary.TotalGST
		for _, line := range cart.Lines() {
			item, err := s.deduct(ctx, repos, line, now)
			if err != nil {
				return err
			}
			txn.Items = append(txn.Items, item)
		}

		if err := txn.Validate(); err != nil {
			return err
		}
		return repos.Transactions().Append(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.observe(txn)
	s.log.Info("sale recorded",
		zap.String("transaction_id", txn.ID),
		zap.String("payment_method", string(txn.PaymentMethod)),
		zap.Int("items", len(txn.Items)),
		zap.String("total", txn.TotalAmount.StringFixed(2)),
		zap.String("gst", txn.GSTAmount.StringFixed(2)),
	)
	return txn, nil
}

// deduct lowers the stock of one cart line and applies the lot policy.
func (s *Service) deduct(ctx context.Context, repos domain.Repositories, line CartLine, now time.Time) (domain.TransactionItem, error) {
	med := line.Medicine
	med.Lots = append([]domain.Lot(nil), line.Medicine.Lots...)
	med.StockQuantity -= line.Quantity
	med.UpdatedAt = now

	item := domain.TransactionItem{
		MedicineID:   med.ID,
		MedicineName: med.Name,
		Quantity:     line.Quantity,
		Price:        line.UnitPrice(),
		BatchNo:      med.BatchNo,
		ExpiryDate:   med.ExpiryDate,
		GSTRate:      line.GSTRate,
	}

	if s.policy == LotPolicyFIFO {
		selections, shortfall := consumeFIFO(&med, line.Quantity)
		if len(selections) > 0 {
			item.BatchNo = selections[0].BatchNo
			item.ExpiryDate = selections[0].ExpiryDate
		}
		if shortfall > 0 {
			s.log.Debug("sale exceeds tracked lots",
				zap.String("medicine_id", med.ID),
				zap.Int64("untracked", shortfall),
			)
		}
	}

	if err := repos.Medicines().Update(ctx, &med); err != nil {
		return item, fmt.Errorf("update medicine %q: %w", med.Name, err)
	}
	return item, nil
}
