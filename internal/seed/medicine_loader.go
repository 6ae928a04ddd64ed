// Package seed loads a starter medicine catalog at start-up.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"medstore/m/internal/bulkimport"
	"medstore/m/internal/inventory"
)

// Source names catalog seeds in the bulk upload history.
const Source = "seed"

// LoadMedicines imports the CSV at path when the catalog is still empty. A
// missing file is not an error.
func LoadMedicines(ctx context.Context, svc *inventory.Service, path string, log *zap.Logger) error {
	if path == "" {
		return nil
	}
	existing, err := svc.Medicines(ctx)
	if err != nil {
		return fmt.Errorf("list medicines: %w", err)
	}
	if len(existing) > 0 {
		log.Debug("catalog already populated, skipping seed", zap.Int("medicines", len(existing)))
		return nil
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("medicine catalog not found, skipping seed", zap.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("open medicine catalog: %w", err)
	}
	defer file.Close()

	res, err := bulkimport.ParseCSV(file)
	if err != nil {
		return fmt.Errorf("parse medicine catalog %s: %w", path, err)
	}
	for _, rowErr := range res.Errors {
		log.Warn("skipping catalog row", zap.Int("row", rowErr.Row), zap.String("field", rowErr.Field), zap.String("reason", rowErr.Message))
	}
	if len(res.Medicines) == 0 {
		log.Warn("medicine catalog has no usable rows", zap.String("path", path))
		return nil
	}

	upload, err := svc.ImportMedicines(ctx, Source, res.Medicines)
	if err != nil {
		return fmt.Errorf("import medicine catalog: %w", err)
	}
	log.Info("seeded medicine catalog", zap.Int("rows", upload.Rows), zap.Int("skipped", len(res.Errors)))
	return nil
}
