package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"replaydrive/internal/domain"
	"replaydrive/internal/repository"
)

type FolderHandler struct {
	folders *repository.FolderRepository
}

func NewFolderHandler(folders *repository.FolderRepository) *FolderHandler {
	return &FolderHandler{folders: folders}
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name          string                  `json:"name"`
		Collaborators domain.CollaboratorList `json:"collaborators"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	folder := &domain.SharedFolder{
		ID:            uuid.New(),
		Name:          req.Name,
		OwnerID:       owner,
		Collaborators: req.Collaborators,
	}
	if folder.Collaborators == nil {
		folder.Collaborators = domain.CollaboratorList{}
	}

	if err := h.folders.Create(r.Context(), folder); err != nil {
		http.Error(w, "Failed to create folder", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(folder)
}

func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folders, err := h.folders.ListByOwner(r.Context(), owner)
	if err != nil {
		http.Error(w, "Failed to list folders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(folders)
}

func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	if _, err := userID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	folder, err := h.folders.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrFolderNotFound) {
		http.Error(w, "Folder not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(folder)
}

// UpdateCollaborators заменяет участников папки; разрешено только владельцу
func (h *FolderHandler) UpdateCollaborators(w http.ResponseWriter, r *http.Request) {
	actor, err := userID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	folder, err := h.folders.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrFolderNotFound) {
		http.Error(w, "Folder not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if folder.OwnerID != actor {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var req struct {
		Collaborators domain.CollaboratorList `json:"collaborators"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.folders.UpdateCollaborators(r.Context(), id, req.Collaborators); err != nil {
		http.Error(w, "Failed to update collaborators", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
