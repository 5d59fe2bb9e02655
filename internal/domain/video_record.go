package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SyncStatus определяет состояние синхронизации записи
type SyncStatus string

const (
	SyncStatusNotSynced SyncStatus = "not_synced"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusSynced    SyncStatus = "synced"
	SyncStatusFailed    SyncStatus = "sync_failed"
	SyncStatusConflict  SyncStatus = "sync_conflict"
)

// ProcessingStatus определяет состояние обработки видео
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
	ProcessingStatusCancelled  ProcessingStatus = "cancelled"
)

// LocalCopyState различает "ещё не известно", "копии нет" и "копия есть".
// Для локального файла это различие значимое: absent означает, что файл
// был намеренно удален (например, при очистке), а unknown — что состояние
// ещё не определялось.
type LocalCopyState string

const (
	LocalCopyUnknown LocalCopyState = "unknown"
	LocalCopyAbsent  LocalCopyState = "absent"
	LocalCopyPresent LocalCopyState = "present"
)

// LocalCopy представляет локальную копию видеофайла
type LocalCopy struct {
	State LocalCopyState `json:"state"`
	Path  string         `json:"path,omitempty"`
}

func PresentLocalCopy(path string) LocalCopy {
	return LocalCopy{State: LocalCopyPresent, Path: path}
}

func AbsentLocalCopy() LocalCopy {
	return LocalCopy{State: LocalCopyAbsent}
}

// VideoMetadata содержит технические характеристики видео,
// неизменяемые после завершения обработки
type VideoMetadata struct {
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
	Codec     string  `json:"codec,omitempty"`
	Context   string  `json:"context,omitempty"` // game, practice
	Camera    string  `json:"camera,omitempty"`
}

// Value сериализует метаданные в jsonb
func (m VideoMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan читает метаданные из jsonb
func (m *VideoMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = VideoMetadata{}
		return nil
	}
	return fmt.Errorf("unsupported metadata type %T", src)
}

// VideoRecord представляет одно видео спортсмена и его метаданные
type VideoRecord struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OwnerID          string           `json:"owner_id" db:"owner_id"`
	FolderID         *uuid.UUID       `json:"folder_id,omitempty" db:"folder_id"`
	Name             string           `json:"name" db:"name"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	LastModified     time.Time        `json:"last_modified" db:"last_modified"`
	DurationSeconds  float64          `json:"duration_seconds" db:"duration_seconds"`
	SizeBytes        int64            `json:"size_bytes" db:"size_bytes"`
	Metadata         VideoMetadata    `json:"metadata" db:"metadata"`
	LocalState       LocalCopyState   `json:"local_state" db:"local_state"`
	LocalPath        string           `json:"local_path,omitempty" db:"local_path"`
	CloudKey         *string          `json:"cloud_key,omitempty" db:"cloud_key"`
	ThumbnailPath    *string          `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	Tags             pq.StringArray   `json:"tags" db:"tags"`
	IsHighlight      bool             `json:"is_highlight" db:"is_highlight"`
	SyncStatus       SyncStatus       `json:"sync_status" db:"sync_status"`
	ProcessingStatus ProcessingStatus `json:"processing_status" db:"processing_status"`

	// Extra хранит неизвестные поля удаленного документа, чтобы не терять
	// их при обратной записи (совместимость вперед)
	Extra map[string]interface{} `json:"-" db:"-"`
}

// NewVideoRecord создает новую запись в начальном состоянии
func NewVideoRecord(ownerID, name string) *VideoRecord {
	now := time.Now().UTC()
	return &VideoRecord{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Name:             name,
		CreatedAt:        now,
		LastModified:     now,
		LocalState:       LocalCopyUnknown,
		Tags:             pq.StringArray{},
		SyncStatus:       SyncStatusNotSynced,
		ProcessingStatus: ProcessingStatusPending,
	}
}

// Local возвращает локальную копию как тегированный вариант
func (r *VideoRecord) Local() LocalCopy {
	return LocalCopy{State: r.LocalState, Path: r.LocalPath}
}

// SetLocal устанавливает состояние локальной копии
func (r *VideoRecord) SetLocal(lc LocalCopy) {
	r.LocalState = lc.State
	if lc.State == LocalCopyPresent {
		r.LocalPath = lc.Path
	} else {
		r.LocalPath = ""
	}
}

// HasLocal сообщает, есть ли подтвержденная локальная копия
func (r *VideoRecord) HasLocal() bool {
	return r.LocalState == LocalCopyPresent
}

// HasCloud сообщает, есть ли подтвержденная удаленная копия
func (r *VideoRecord) HasCloud() bool {
	return r.CloudKey != nil && *r.CloudKey != ""
}

// Orphaned определяет логически удаленную запись: нет ни локальной,
// ни удаленной копии. Такая запись должна быть убрана из рабочего набора
func (r *VideoRecord) Orphaned() bool {
	return !r.HasLocal() && !r.HasCloud()
}

// Touch обновляет lastModified. Часы записи монотонно неубывающие:
// если системное время отстало, прибавляем минимальный шаг
func (r *VideoRecord) Touch() {
	now := time.Now().UTC()
	if now.After(r.LastModified) {
		r.LastModified = now
	} else {
		r.LastModified = r.LastModified.Add(time.Millisecond)
	}
}

// MarkEdited фиксирует пользовательское изменение: часы вперед,
// запись снова требует синхронизации
func (r *VideoRecord) MarkEdited() {
	r.Touch()
	r.SyncStatus = SyncStatusNotSynced
}

// Transferable сообщает, можно ли предлагать запись к передаче или
// удалению пользователем
func (r *VideoRecord) Transferable() bool {
	return r.ProcessingStatus == ProcessingStatusCompleted
}

// Validate проверяет инварианты записи
func (r *VideoRecord) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("record id is required")
	}
	if r.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if r.SyncStatus == SyncStatusSynced && !r.HasCloud() {
		return fmt.Errorf("synced record %s has no cloud key", r.ID)
	}
	return nil
}
