package files

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"uploader/internal/errors"
	"uploader/internal/json"
)

type FileHandler struct {
	svc *service
}

func NewFileHandler(svc *service) *FileHandler {
	return &FileHandler{
		svc: svc,
	}
}

// AddFiles stages every file part of a multipart/form-data body.
func (h *FileHandler) AddFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	if limit := h.svc.constraint.MaxRequestSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		slog.WarnContext(ctx, "Expected a multipart body", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Expected a multipart/form-data body", err))
		return
	}

	files, err := h.svc.Stage(ctx, sessionID, reader)
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, files)
}

func (h *FileHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "File index must be an integer", err))
		return
	}

	files, err := h.svc.Remove(ctx, sessionID, index)
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, files)
}
