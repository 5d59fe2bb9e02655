package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"replaydrive/internal/domain"
	"replaydrive/internal/service"
)

type SyncHandler struct {
	syncs *service.SyncRegistry
}

func NewSyncHandler(syncs *service.SyncRegistry) *SyncHandler {
	return &SyncHandler{syncs: syncs}
}

// TriggerSync запускает полный проход синхронизации. Если проход уже
// идет, вызов присоединяется к нему и возвращает его результат
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.syncs.ForOwner(owner).FullSync(r.Context())
	if err != nil {
		if result == nil {
			http.Error(w, fmt.Sprintf("Sync failed: %v", err), http.StatusInternalServerError)
			return
		}
		// Частичный итог все равно полезен вызывающему
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultiStatus)
		json.NewEncoder(w).Encode(result)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	engine := h.syncs.ForOwner(owner)

	status := struct {
		State     service.EngineState `json:"state"`
		LastSync  time.Time           `json:"last_sync"`
		Pending   int                 `json:"pending_operations"`
		Conflicts int                 `json:"conflicts"`
	}{
		State:     engine.State(),
		LastSync:  engine.LastSync(),
		Pending:   engine.PendingCount(),
		Conflicts: len(engine.Conflicts()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.syncs.ForOwner(owner).Conflicts())
}

func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return
	}

	var resolution domain.Resolution
	if err := json.NewDecoder(r.Body).Decode(&resolution); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch resolution.Choice {
	case domain.ResolutionUseLocal, domain.ResolutionUseRemote, domain.ResolutionMerge:
	default:
		http.Error(w, "Invalid resolution choice", http.StatusBadRequest)
		return
	}

	if err := h.syncs.ForOwner(owner).ResolveConflict(r.Context(), id, resolution); err != nil {
		http.Error(w, fmt.Sprintf("Failed to resolve conflict: %v", err), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusOK)
}
