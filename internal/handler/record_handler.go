package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"replaydrive/internal/repository"
	"replaydrive/internal/service"
)

type RecordHandler struct {
	catalog    service.RecordCatalog
	videos     *service.VideoService
	processing *service.ProcessingService
}

func NewRecordHandler(catalog service.RecordCatalog, videos *service.VideoService, processing *service.ProcessingService) *RecordHandler {
	return &RecordHandler{
		catalog:    catalog,
		videos:     videos,
		processing: processing,
	}
}

// ImportRecord принимает видеофайл и создает запись. Обработка идет в фоне
func (h *RecordHandler) ImportRecord(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	rec, err := h.processing.Import(r.Context(), owner, name, file)
	if err != nil {
		log.Printf("[RecordHandler] Import failed: %v", err)
		http.Error(w, fmt.Sprintf("Failed to import video: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.catalog.ListByOwner(r.Context(), owner)
	if err != nil {
		http.Error(w, "Failed to list records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	if _, err := userID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	rec, err := h.catalog.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrRecordNotFound) {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get record", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *RecordHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.videos.UpdateTags(r.Context(), id, actor, req.Tags)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *RecordHandler) SetHighlight(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	var req struct {
		IsHighlight bool `json:"is_highlight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.videos.SetHighlight(r.Context(), id, actor, req.IsHighlight)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *RecordHandler) RenameRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	rec, err := h.videos.Rename(r.Context(), id, actor, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (h *RecordHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.videos.Delete(r.Context(), id, actor); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		http.Error(w, "Record not found", http.StatusNotFound)
	case errors.Is(err, service.ErrPermissionDenied):
		http.Error(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, service.ErrNotTransferable):
		http.Error(w, "Record is still processing", http.StatusConflict)
	case errors.Is(err, service.ErrNoCloudCopy):
		http.Error(w, "Record has no cloud copy", http.StatusConflict)
	case errors.Is(err, service.ErrNoTransfer):
		http.Error(w, "No transfer in flight", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
