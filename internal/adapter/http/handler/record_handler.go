package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/goexpense/internal/adapter/http/dto"
	"github.com/iho/goexpense/internal/adapter/http/middleware"
	"github.com/iho/goexpense/internal/usecase"
)

// RecordHandler exposes the signed-in identity's ledger store.
type RecordHandler struct {
	sessions SessionService
	logger   zerolog.Logger
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(sessions SessionService, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		sessions: sessions,
		logger:   logger.With().Str("component", "record_handler").Logger(),
	}
}

// store returns the caller's ledger store, writing the error response when
// there is none.
func (h *RecordHandler) store(w http.ResponseWriter, r *http.Request) (*usecase.LedgerStore, bool) {
	sess, err := h.sessions.Open(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return sess.Store, true
}

// List handles GET /records.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordList(store))
}

// Grouped handles GET /records/grouped.
func (h *RecordHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.GroupedViewFromDomain(store.GroupedView()))
}

// Reload handles POST /records/reload. On failure the previous records stay.
func (h *RecordHandler) Reload(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := store.Load(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recordList(store))
}

// Add handles POST /records.
func (h *RecordHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req dto.AddRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	record, err := store.Add(r.Context(), req.Description, string(req.Value))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RecordFromDomain(record))
}

// Delete handles DELETE /records/{id}.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BeginEdit handles POST /records/{id}/edit.
func (h *RecordHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	edit, err := store.BeginEdit(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EditSessionFromUseCase(edit))
}

// GetEdit handles GET /edit.
func (h *RecordHandler) GetEdit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	edit := store.Editing()
	writeJSON(w, http.StatusOK, dto.EditStateResponse{
		Editing: edit != nil,
		Session: dto.EditSessionFromUseCase(edit),
	})
}

// UpdateDraft handles PUT /edit.
func (h *RecordHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req dto.DraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	edit, err := store.UpdateDraft(req.Description, string(req.Value))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EditSessionFromUseCase(edit))
}

// CommitEdit handles POST /edit/commit. The edit session stays open when the
// draft is rejected or cannot be saved.
func (h *RecordHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	record, err := store.CommitEdit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecordFromDomain(record))
}

// CancelEdit handles DELETE /edit.
func (h *RecordHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	store.CancelEdit()
	w.WriteHeader(http.StatusNoContent)
}

func recordList(store *usecase.LedgerStore) dto.RecordListResponse {
	state := store.State()
	return dto.RecordListResponse{
		Records: dto.RecordsFromDomain(state.Records),
		Total:   state.View.TotalDisplay(),
	}
}
