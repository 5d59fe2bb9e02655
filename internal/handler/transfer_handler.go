package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"replaydrive/internal/service"
)

type TransferHandler struct {
	videos *service.VideoService
}

func NewTransferHandler(videos *service.VideoService) *TransferHandler {
	return &TransferHandler{videos: videos}
}

func (h *TransferHandler) recordID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// StartUpload начинает асинхронную загрузку записи в удаленное хранилище
func (h *TransferHandler) StartUpload(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := h.recordID(r)
	if !ok {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.videos.Upload(r.Context(), id, actor); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// StartDownload начинает асинхронное скачивание записи в локальное хранилище
func (h *TransferHandler) StartDownload(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := h.recordID(r)
	if !ok {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.videos.Download(r.Context(), id, actor); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// CancelTransfer кооперативно отменяет идущую передачу
func (h *TransferHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	if _, err := userID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := h.recordID(r)
	if !ok {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	if err := h.videos.Cancel(id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetProgress возвращает прогресс идущей передачи
func (h *TransferHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	if _, err := userID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := h.recordID(r)
	if !ok {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	fraction, inFlight := h.videos.Progress(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		InFlight bool    `json:"in_flight"`
		Fraction float64 `json:"fraction"`
	}{InFlight: inFlight, Fraction: fraction})
}

// UploadBatch загружает пакет записей порциями под ограничением параллелизма
func (h *TransferHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "At least one record ID is required", http.StatusBadRequest)
		return
	}

	if err := h.videos.UploadBatch(r.Context(), req.IDs, actor); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultiStatus)
		json.NewEncoder(w).Encode(struct {
			Error string `json:"error"`
		}{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
}

// StorageCleanup выселяет локальные копии сверх потолка
func (h *TransferHandler) StorageCleanup(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	evicted, err := h.videos.PerformStorageCleanup(r.Context(), owner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Evicted int `json:"evicted"`
	}{Evicted: evicted})
}
