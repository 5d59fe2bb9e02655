package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"replaydrive/internal/domain"
)

// ErrFolderNotFound возвращается при отсутствии общей папки
var ErrFolderNotFound = errors.New("shared folder not found")

// FolderRepository хранит общие папки и их участников
type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.SharedFolder) error {
	query := `
        INSERT INTO shared_folders (id, name, owner_id, collaborators)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		folder.ID, folder.Name, folder.OwnerID, folder.Collaborators,
	).Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shared folder: %w", err)
	}

	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SharedFolder, error) {
	var folder domain.SharedFolder

	err := r.db.GetContext(ctx, &folder, `SELECT * FROM shared_folders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shared folder: %w", err)
	}

	return &folder, nil
}

func (r *FolderRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.SharedFolder, error) {
	var folders []domain.SharedFolder

	query := `SELECT * FROM shared_folders WHERE owner_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &folders, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list shared folders: %w", err)
	}

	return folders, nil
}

// UpdateCollaborators заменяет список участников папки
func (r *FolderRepository) UpdateCollaborators(ctx context.Context, id uuid.UUID, collaborators domain.CollaboratorList) error {
	query := `
        UPDATE shared_folders
        SET collaborators = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, collaborators)
	if err != nil {
		return fmt.Errorf("failed to update collaborators: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrFolderNotFound
	}

	return nil
}
