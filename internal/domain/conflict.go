package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType классифицирует расхождение между локальной и удаленной
// сторонами. Классификация обязательна до предъявления вариантов решения:
// useLocal для delete/update имеет разную семантику
type ConflictType string

const (
	// Обе стороны изменились после последнего общего состояния
	ConflictUpdateUpdate ConflictType = "update_update"
	// Локально удалено, удаленно изменено
	ConflictDeleteUpdate ConflictType = "delete_update"
	// Локально изменено, удаленно удалено
	ConflictUpdateDelete ConflictType = "update_delete"
)

// Conflict представляет обнаруженное расхождение, требующее явного решения
type Conflict struct {
	RecordID       uuid.UUID    `json:"record_id"`
	Type           ConflictType `json:"type"`
	Local          *VideoRecord `json:"local,omitempty"`  // nil при delete_update
	Remote         Document     `json:"remote,omitempty"` // nil при update_delete
	RemoteModified time.Time    `json:"remote_modified"`
	DetectedAt     time.Time    `json:"detected_at"`
}

// ResolutionChoice — выбор пользователя при разрешении конфликта
type ResolutionChoice string

const (
	ResolutionUseLocal  ResolutionChoice = "use_local"
	ResolutionUseRemote ResolutionChoice = "use_remote"
	ResolutionMerge     ResolutionChoice = "merge"
)

// Resolution описывает решение конфликта. Merged обязателен только
// для выбора merge
type Resolution struct {
	Choice ResolutionChoice `json:"choice"`
	Merged *VideoRecord     `json:"merged,omitempty"`
}
