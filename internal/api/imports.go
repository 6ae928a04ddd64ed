package api

import (
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/bulkimport"
	"medstore/m/internal/logger"
	"medstore/m/internal/ocr"
)

const maxUploadBytes = 10 << 20

type importResponse struct {
	Upload    *domain.BulkUpload    `json:"upload,omitempty"`
	Medicines []domain.Medicine     `json:"medicines,omitempty"`
	Errors    []bulkimport.RowError `json:"errors,omitempty"`
	Unmapped  []string              `json:"unmapped_columns,omitempty"`
	DryRun    bool                  `json:"dry_run"`
}

// readUpload returns the "file" multipart part, or the raw body for other
// content types.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", "", err
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		return raw, header.Filename, header.Header.Get("Content-Type"), err
	}
	raw, err := io.ReadAll(r.Body)
	return raw, r.URL.Query().Get("filename"), r.Header.Get("Content-Type"), err
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	raw, _, _, err := readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read upload: "+err.Error())
		return
	}
	res, err := bulkimport.ParseCSV(strings.NewReader(string(raw)))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.commitImport(w, r, "csv", res)
}

func (h *Handler) importOCR(w http.ResponseWriter, r *http.Request) {
	if h.ocr == nil {
		respondError(w, http.StatusServiceUnavailable, "OCR import is not configured")
		return
	}
	raw, filename, contentType, err := readUpload(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read upload: "+err.Error())
		return
	}
	fileType, ok := ocr.DetectFileType(contentType, filename)
	if !ok {
		respondError(w, http.StatusBadRequest, "upload an image or PDF")
		return
	}
	table, err := h.ocr.Extract(r.Context(), raw, fileType)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	res, err := bulkimport.FromRecords(table.Headers, table.Data)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.commitImport(w, r, "ocr", res)
}

// commitImport stores the valid rows unless ?dry_run=true.
func (h *Handler) commitImport(w http.ResponseWriter, r *http.Request, source string, res *bulkimport.Result) {
	out := importResponse{Errors: res.Errors, Unmapped: res.Unmapped}
	if r.URL.Query().Get("dry_run") == "true" || len(res.Medicines) == 0 {
		out.DryRun = true
		out.Medicines = res.Medicines
		respondJSON(w, http.StatusOK, out)
		return
	}
	upload, err := h.inventory.ImportMedicines(r.Context(), source, res.Medicines)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	logger.FromContext(r.Context(), h.log).Info("bulk import committed",
		zap.String("source", source),
		zap.Int("rows", upload.Rows),
		zap.Int("rejected", len(res.Errors)),
	)
	out.Upload = upload
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) importHistory(w http.ResponseWriter, r *http.Request) {
	var history []domain.BulkUpload
	if _, err := h.store.State().Get(r.Context(), domain.StateBulkUploadedMedicines, &history); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(history))
}
