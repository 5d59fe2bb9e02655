package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"replaydrive/internal/domain"
)

// ErrRecordNotFound возвращается при отсутствии записи в каталоге
var ErrRecordNotFound = errors.New("record not found")

// RecordRepository — локальный каталог видеозаписей в Postgres
type RecordRepository struct {
	db *sqlx.DB
}

func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.VideoRecord) error {
	query := `
        INSERT INTO video_records (
            id, owner_id, folder_id, name, created_at, last_modified,
            duration_seconds, size_bytes, metadata, local_state, local_path,
            cloud_key, thumbnail_path, tags, is_highlight, sync_status, processing_status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, rec.FolderID, rec.Name, rec.CreatedAt, rec.LastModified,
		rec.DurationSeconds, rec.SizeBytes, rec.Metadata, rec.LocalState, rec.LocalPath,
		rec.CloudKey, rec.ThumbnailPath, pq.Array([]string(rec.Tags)), rec.IsHighlight,
		rec.SyncStatus, rec.ProcessingStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

func (r *RecordRepository) Update(ctx context.Context, rec *domain.VideoRecord) error {
	query := `
        UPDATE video_records SET
            folder_id = $2, name = $3, last_modified = $4, duration_seconds = $5,
            size_bytes = $6, metadata = $7, local_state = $8, local_path = $9,
            cloud_key = $10, thumbnail_path = $11, tags = $12, is_highlight = $13,
            sync_status = $14, processing_status = $15
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.FolderID, rec.Name, rec.LastModified, rec.DurationSeconds,
		rec.SizeBytes, rec.Metadata, rec.LocalState, rec.LocalPath,
		rec.CloudKey, rec.ThumbnailPath, pq.Array([]string(rec.Tags)), rec.IsHighlight,
		rec.SyncStatus, rec.ProcessingStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (r *RecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM video_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error) {
	var rec domain.VideoRecord

	err := r.db.GetContext(ctx, &rec, `SELECT * FROM video_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &rec, nil
}

func (r *RecordRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.VideoRecord, error) {
	var records []domain.VideoRecord

	query := `SELECT * FROM video_records WHERE owner_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &records, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// CountPending возвращает количество записей, которым нужна синхронизация.
// Используется периодическим триггером, чтобы не ходить в сеть впустую
func (r *RecordRepository) CountPending(ctx context.Context, ownerID string) (int, error) {
	var count int

	query := `
        SELECT COUNT(*) FROM video_records
        WHERE owner_id = $1 AND sync_status IN ($2, $3)`

	err := r.db.GetContext(ctx, &count, query, ownerID,
		domain.SyncStatusNotSynced, domain.SyncStatusConflict)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}

	return count, nil
}

// CountLocal возвращает количество записей с локальной копией
func (r *RecordRepository) CountLocal(ctx context.Context, ownerID string) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM video_records WHERE owner_id = $1 AND local_state = $2`
	err := r.db.GetContext(ctx, &count, query, ownerID, domain.LocalCopyPresent)
	if err != nil {
		return 0, fmt.Errorf("failed to count local records: %w", err)
	}

	return count, nil
}

// ListEvictable возвращает старейшие записи, у которых есть и локальная,
// и подтвержденная удаленная копия. Только такие записи можно выселять
func (r *RecordRepository) ListEvictable(ctx context.Context, ownerID string, limit int) ([]domain.VideoRecord, error) {
	var records []domain.VideoRecord

	query := `
        SELECT * FROM video_records
        WHERE owner_id = $1
          AND local_state = $2
          AND cloud_key IS NOT NULL
        ORDER BY created_at
        LIMIT $3`

	err := r.db.SelectContext(ctx, &records, query, ownerID, domain.LocalCopyPresent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evictable records: %w", err)
	}

	return records, nil
}

// ResetStaleStatuses приводит записи в пригодное состояние после
// аварийного завершения: статус syncing без живой передачи и статус
// processing без живой обработки невозможны после рестарта
func (r *RecordRepository) ResetStaleStatuses(ctx context.Context) (int64, error) {
	var total int64

	result, err := r.db.ExecContext(ctx, `
        UPDATE video_records SET sync_status = $1 WHERE sync_status = $2`,
		domain.SyncStatusNotSynced, domain.SyncStatusSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to reset syncing statuses: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}

	result, err = r.db.ExecContext(ctx, `
        UPDATE video_records SET processing_status = $1
        WHERE processing_status IN ($2, $3)`,
		domain.ProcessingStatusFailed, domain.ProcessingStatusPending, domain.ProcessingStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to reset processing statuses: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}

	return total, nil
}
