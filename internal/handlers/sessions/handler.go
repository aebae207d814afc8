package sessions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"uploader/internal/auth"
	"uploader/internal/errors"
	"uploader/internal/json"
)

type SessionsHandler struct {
	service SessionsService
}

func NewSessionsHandler(svc SessionsService) *SessionsHandler {
	return &SessionsHandler{
		service: svc,
	}
}

func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Create(r.Context())
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}
	json.Write(w, http.StatusCreated, resp)
}

func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}
	json.Write(w, http.StatusOK, resp)
}

func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		errors.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) SelectRegion(w http.ResponseWriter, r *http.Request) {
	h.pick(w, r, h.service.SelectRegion)
}

func (h *SessionsHandler) SelectBusiness(w http.ResponseWriter, r *http.Request) {
	h.pick(w, r, h.service.SelectBusiness)
}

func (h *SessionsHandler) SelectBranch(w http.ResponseWriter, r *http.Request) {
	h.pick(w, r, h.service.SelectBranch)
}

func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}
	json.Write(w, http.StatusOK, resp)
}

// Submit answers 200 when every file was stored and 207 when only some were.
func (h *SessionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	resp, err := h.service.Submit(ctx, id, auth.GetUserID(ctx))
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}

	status := http.StatusOK
	for _, result := range resp.Results {
		if result.Error != "" {
			status = http.StatusMultiStatus
			break
		}
	}
	slog.DebugContext(ctx, "Submit finished", "session_id", id, "status", status)
	json.Write(w, status, resp)
}

func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}
	json.Write(w, http.StatusOK, entries)
}

type pickFunc func(ctx context.Context, id string, itemID *int) (SessionResponse, error)

// pick handles PUT (select the body's id) and DELETE (clear) for one dropdown.
func (h *SessionsHandler) pick(w http.ResponseWriter, r *http.Request, fn pickFunc) {
	ctx := r.Context()

	var itemID *int
	if r.Method != http.MethodDelete {
		req := PickRequest{}
		if err := json.Read(r, &req); err != nil {
			slog.WarnContext(ctx, "Invalid request body", "error", err)
			errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, `Expected a body like {"id": 1}`, err))
			return
		}
		itemID = &req.ID
	}

	resp, err := fn(ctx, chi.URLParam(r, "id"), itemID)
	if err != nil {
		errors.RespondError(w, r, err)
		return
	}
	json.Write(w, http.StatusOK, resp)
}
