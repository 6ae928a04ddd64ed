package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medstore/m/domain"
)

// ImportMedicines commits parsed catalog rows. Unknown medicines are created,
// known ones are restocked with a new lot. No transaction is recorded; the
// batch is appended to the bulk upload history.
func (s *Service) ImportMedicines(ctx context.Context, source string, rows []domain.Medicine) (*domain.BulkUpload, error) {
	if len(rows) == 0 {
		verr := domain.NewValidationError()
		verr.Add("rows", "no medicines to import")
		return nil, verr
	}

	now := s.now()
	upload := &domain.BulkUpload{Source: source, Rows: len(rows), UploadedAt: now}

	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		settings, err := s.settings(ctx, repos)
		if err != nil {
			return err
		}
		for _, row := range rows {
			id, err := s.importRow(ctx, repos, row, now, settings.DefaultMinStockLevel)
			if err != nil {
				return err
			}
			upload.MedicineIDs = append(upload.MedicineIDs, id)
		}

		var history []domain.BulkUpload
		if _, err := repos.State().Get(ctx, domain.StateBulkUploadedMedicines, &history); err != nil {
			return fmt.Errorf("load upload history: %w", err)
		}
		history = append(history, *upload)
		return repos.State().Put(ctx, domain.StateBulkUploadedMedicines, history)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("medicines imported", zap.String("source", source), zap.Int("rows", len(rows)))
	return upload, nil
}

func (s *Service) importRow(ctx context.Context, repos domain.Repositories, row domain.Medicine, now time.Time, minStock int64) (string, error) {
	existing, err := resolveMedicine(ctx, repos, "", row.Name)
	if err != nil {
		return "", err
	}

	lot := domain.Lot{
		ID:            uuid.NewString(),
		BatchNo:       row.BatchNo,
		ExpiryDate:    row.ExpiryDate,
		Quantity:      row.StockQuantity,
		PurchasePrice: row.Price,
		PurchaseDate:  now,
		Supplier:      row.Supplier,
		GSTRate:       row.GSTRate,
	}

	if existing != nil {
		if row.StockQuantity <= 0 {
			return existing.ID, nil
		}
		if lot.GSTRate.IsZero() {
			lot.GSTRate = existing.GSTRate
		}
		s.restock(existing, lot, now)
		if err := repos.Medicines().Update(ctx, existing); err != nil {
			return "", fmt.Errorf("update medicine %q: %w", existing.Name, err)
		}
		return existing.ID, nil
	}

	med := row
	med.ID = uuid.NewString()
	if med.MinStockLevel <= 0 {
		med.MinStockLevel = minStock
	}
	med.Lots = nil
	if med.StockQuantity > 0 {
		lot.MedicineID = med.ID
		med.Lots = []domain.Lot{lot}
	}
	med.CreatedAt = now
	med.UpdatedAt = now
	if err := repos.Medicines().Create(ctx, &med); err != nil {
		return "", fmt.Errorf("create medicine %q: %w", med.Name, err)
	}
	return med.ID, nil
}
