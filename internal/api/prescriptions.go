package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"medstore/m/internal/logger"
)

func (h *Handler) uploadPrescription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	key, err := h.files.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	logger.FromContext(r.Context(), h.log).Info("prescription stored",
		zap.String("key", key),
		zap.Int64("size", header.Size),
	)
	respondJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *Handler) getPrescription(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.files.Open(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.FromContext(r.Context(), h.log).Warn("prescription stream interrupted", zap.Error(err))
	}
}
