package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collaborator — участник общей папки с флагами возможностей
type Collaborator struct {
	UserID     string `json:"user_id"`
	CanUpload  bool   `json:"can_upload"`
	CanComment bool   `json:"can_comment"`
	CanDelete  bool   `json:"can_delete"`
}

// CollaboratorList хранится в jsonb
type CollaboratorList []Collaborator

func (l CollaboratorList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *CollaboratorList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	}
	return fmt.Errorf("unsupported collaborators type %T", src)
}

// SharedFolder — папка, через которую тренер получает доступ к записям
// спортсмена. Служит границей прав при изменении удаленного представления
type SharedFolder struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	OwnerID       string           `json:"owner_id" db:"owner_id"`
	Collaborators CollaboratorList `json:"collaborators" db:"collaborators"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// Collaborator возвращает участника по идентификатору
func (f *SharedFolder) Collaborator(userID string) (Collaborator, bool) {
	for _, c := range f.Collaborators {
		if c.UserID == userID {
			return c, true
		}
	}
	return Collaborator{}, false
}
