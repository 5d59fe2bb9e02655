package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"replaydrive/internal/domain"
)

// ErrPermissionDenied возвращается, когда действующему лицу не хватает прав
var ErrPermissionDenied = errors.New("permission denied")

// FolderCatalog — доступ к общим папкам, нужный проверке прав
type FolderCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SharedFolder, error)
}

// PermissionService решает, может ли действующее лицо изменять удаленное
// представление записи. Владелец записи может всё; остальные — только
// через общую папку с соответствующим флагом
type PermissionService struct {
	folders FolderCatalog
}

func NewPermissionService(folders FolderCatalog) *PermissionService {
	return &PermissionService{folders: folders}
}

type capability int

const (
	capabilityUpload capability = iota
	capabilityComment
	capabilityDelete
)

func (s *PermissionService) check(ctx context.Context, rec *domain.VideoRecord, actor string, cap capability) error {
	if actor == rec.OwnerID {
		return nil
	}
	if rec.FolderID == nil {
		return fmt.Errorf("record %s is not shared: %w", rec.ID, ErrPermissionDenied)
	}

	folder, err := s.folders.GetByID(ctx, *rec.FolderID)
	if err != nil {
		return fmt.Errorf("failed to load folder %s: %w", rec.FolderID, err)
	}

	c, ok := folder.Collaborator(actor)
	if !ok {
		return fmt.Errorf("%s is not a collaborator of folder %s: %w", actor, folder.ID, ErrPermissionDenied)
	}

	allowed := false
	switch cap {
	case capabilityUpload:
		allowed = c.CanUpload
	case capabilityComment:
		allowed = c.CanComment
	case capabilityDelete:
		allowed = c.CanDelete
	}
	if !allowed {
		return fmt.Errorf("%s lacks capability on folder %s: %w", actor, folder.ID, ErrPermissionDenied)
	}

	return nil
}

// CanUpload проверяет право отправлять запись в удаленное хранилище
func (s *PermissionService) CanUpload(ctx context.Context, rec *domain.VideoRecord, actor string) error {
	return s.check(ctx, rec, actor, capabilityUpload)
}

// CanComment проверяет право комментировать запись
func (s *PermissionService) CanComment(ctx context.Context, rec *domain.VideoRecord, actor string) error {
	return s.check(ctx, rec, actor, capabilityComment)
}

// CanDelete проверяет право удалять запись
func (s *PermissionService) CanDelete(ctx context.Context, rec *domain.VideoRecord, actor string) error {
	return s.check(ctx, rec, actor, capabilityDelete)
}
