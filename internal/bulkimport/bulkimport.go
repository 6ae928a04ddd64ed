// Package bulkimport turns tabular catalog data (CSV files or OCR output)
// into medicines ready to be committed.
package bulkimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medstore/m/domain"
)

// Field is a canonical medicine column.
type Field string

const (
	FieldName         Field = "name"
	FieldManufacturer Field = "manufacturer"
	FieldCategory     Field = "category"
	FieldBatchNo      Field = "batch_no"
	FieldExpiryDate   Field = "expiry_date"
	FieldSupplier     Field = "supplier"
	FieldPrice        Field = "price"
	FieldMRP          Field = "mrp"
	FieldQuantity     Field = "stock_quantity"
	FieldMinStock     Field = "min_stock_level"
	FieldGSTRate      Field = "gst_rate"
	FieldScheduleH    Field = "is_schedule_h"
)

// aliases maps normalised header spellings to fields.
var aliases = map[string]Field{
	"name":            FieldName,
	"medicine":        FieldName,
	"medicinename":    FieldName,
	"productname":     FieldName,
	"item":            FieldName,
	"itemname":        FieldName,
	"brandname":       FieldName,
	"description":     FieldName,
	"manufacturer":    FieldManufacturer,
	"company":         FieldManufacturer,
	"mfr":             FieldManufacturer,
	"mfg":             FieldManufacturer,
	"category":        FieldCategory,
	"type":            FieldCategory,
	"batch":           FieldBatchNo,
	"batchno":         FieldBatchNo,
	"batchnumber":     FieldBatchNo,
	"expiry":          FieldExpiryDate,
	"expirydate":      FieldExpiryDate,
	"exp":             FieldExpiryDate,
	"expdate":         FieldExpiryDate,
	"supplier":        FieldSupplier,
	"vendor":          FieldSupplier,
	"price":           FieldPrice,
	"purchaseprice":   FieldPrice,
	"rate":            FieldPrice,
	"costprice":       FieldPrice,
	"mrp":             FieldMRP,
	"sellingprice":    FieldMRP,
	"quantity":        FieldQuantity,
	"qty":             FieldQuantity,
	"stock":           FieldQuantity,
	"stockquantity":   FieldQuantity,
	"minstock":        FieldMinStock,
	"minstocklevel":   FieldMinStock,
	"reorderlevel":    FieldMinStock,
	"gst":             FieldGSTRate,
	"gstrate":         FieldGSTRate,
	"gstpercent":      FieldGSTRate,
	"tax":             FieldGSTRate,
	"schedule":        FieldScheduleH,
	"scheduleh":       FieldScheduleH,
	"isscheduleh":     FieldScheduleH,
	"prescriptionreq": FieldScheduleH,
}

// ResolveHeader maps a raw column header to a field. Case, spaces and
// punctuation are ignored.
func ResolveHeader(header string) (Field, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	f, ok := aliases[b.String()]
	return f, ok
}

// RowError describes why one input row was skipped. Row is 1-based and
// counts data rows only.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// Result holds the parsed medicines and the rows that failed.
type Result struct {
	Medicines []domain.Medicine `json:"medicines"`
	Errors    []RowError        `json:"errors,omitempty"`
	Unmapped  []string          `json:"unmapped_columns,omitempty"`
}

var ErrNoNameColumn = errors.New("no medicine name column found")

// ParseCSV reads a CSV document whose first record is the header.
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv: %w", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return FromRecords(header, rows)
}

// FromRecords maps keyed rows, as produced by ParseCSV or the OCR service,
// onto medicines.
func FromRecords(headers []string, rows []map[string]string) (*Result, error) {
	columns := make(map[string]Field, len(headers))
	res := &Result{}
	hasName := false
	for _, h := range headers {
		f, ok := ResolveHeader(h)
		if !ok {
			res.Unmapped = append(res.Unmapped, h)
			continue
		}
		if f == FieldName {
			hasName = true
		}
		columns[h] = f
	}
	if !hasName {
		return nil, fmt.Errorf("%w: %w", ErrNoNameColumn, domain.ErrInvalidInput)
	}

	for i, raw := range rows {
		// When several headers map to one field, the leftmost non-empty
		// value wins.
		values := make(map[Field]string, len(columns))
		for _, h := range headers {
			f, ok := columns[h]
			if !ok || values[f] != "" {
				continue
			}
			values[f] = strings.TrimSpace(raw[h])
		}
		if isBlank(values) {
			continue
		}
		med, rowErr := toMedicine(values)
		if rowErr != nil {
			rowErr.Row = i + 1
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Medicines = append(res.Medicines, med)
	}
	return res, nil
}

func isBlank(values map[Field]string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

func toMedicine(v map[Field]string) (domain.Medicine, *RowError) {
	m := domain.Medicine{
		Name:         v[FieldName],
		Manufacturer: v[FieldManufacturer],
		Category:     v[FieldCategory],
		BatchNo:      v[FieldBatchNo],
		Supplier:     v[FieldSupplier],
	}
	if m.Name == "" {
		return m, &RowError{Field: string(FieldName), Message: "medicine name is required"}
	}

	var err error
	if m.Price, err = parseMoney(v[FieldPrice]); err != nil {
		return m, &RowError{Field: string(FieldPrice), Message: err.Error()}
	}
	if m.MRP, err = parseMoney(v[FieldMRP]); err != nil {
		return m, &RowError{Field: string(FieldMRP), Message: err.Error()}
	}
	if m.GSTRate, err = parseMoney(v[FieldGSTRate]); err != nil {
		return m, &RowError{Field: string(FieldGSTRate), Message: err.Error()}
	}
	if m.StockQuantity, err = parseCount(v[FieldQuantity]); err != nil {
		return m, &RowError{Field: string(FieldQuantity), Message: err.Error()}
	}
	if m.MinStockLevel, err = parseCount(v[FieldMinStock]); err != nil {
		return m, &RowError{Field: string(FieldMinStock), Message: err.Error()}
	}
	if s := v[FieldExpiryDate]; s != "" {
		if m.ExpiryDate, err = ParseDate(s); err != nil {
			return m, &RowError{Field: string(FieldExpiryDate), Message: err.Error()}
		}
	}
	m.IsScheduleH = parseFlag(v[FieldScheduleH])
	return m, nil
}

// parseMoney accepts plain numbers with optional currency symbols, grouping
// commas and a trailing percent sign.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "INR", "", ",", "", "%", "").Replace(s)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q must not be negative", s)
	}
	return d, nil
}

func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(s)
		if derr != nil || !d.Equal(d.Truncate(0)) {
			return 0, fmt.Errorf("%q is not a whole number", s)
		}
		n = d.IntPart()
	}
	if n < 0 {
		return 0, fmt.Errorf("%q must not be negative", s)
	}
	return n, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "true", "h", "schedule h":
		return true
	}
	return false
}

var dateLayouts = []string{
	domain.DateLayout,
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
}

var monthLayouts = []string{
	"01/2006",
	"1/2006",
	"01-2006",
	"2006-01",
	"Jan 2006",
	"Jan-2006",
	"January 2006",
	"01/06",
	"Jan-06",
}

// ParseDate reads the date formats seen on Indian invoices. Day-first forms
// are preferred; month-only expiries resolve to the last day of that month.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.AddDate(0, 1, -1), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
