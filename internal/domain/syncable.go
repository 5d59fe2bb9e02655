package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Document представляет запись в том виде, в каком она хранится
// в удаленном документном хранилище
type Document map[string]interface{}

// Syncable — способность типа участвовать в синхронизации: стабильный
// идентификатор, часы модификации, имя удаленной коллекции и чистое
// преобразование в удаленный документ. Обратное преобразование — отдельный
// конструктор для каждого типа (VideoRecordFromDocument)
type Syncable interface {
	SyncID() string
	ModifiedAt() time.Time
	Collection() string
	ToDocument() (Document, error)
}

// VideoRecordCollection — имя удаленной коллекции записей
const VideoRecordCollection = "video_records"

// knownDocumentKeys перечисляет поля документа, которые мы распознаем.
// Все остальные ключи сохраняются непрозрачно в Extra
var knownDocumentKeys = map[string]bool{
	"id": true, "owner_id": true, "folder_id": true, "name": true,
	"created_at": true, "last_modified": true, "duration_seconds": true,
	"size_bytes": true, "metadata": true, "local_state": true,
	"local_path": true, "cloud_key": true, "thumbnail_path": true,
	"tags": true, "is_highlight": true, "sync_status": true,
	"processing_status": true,
}

func (r *VideoRecord) SyncID() string        { return r.ID.String() }
func (r *VideoRecord) ModifiedAt() time.Time { return r.LastModified }
func (r *VideoRecord) Collection() string    { return VideoRecordCollection }

// ToDocument преобразует запись в удаленный документ. Неизвестные поля
// из Extra переносятся как есть, известные всегда берутся из записи
func (r *VideoRecord) ToDocument() (Document, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	doc := Document{}
	for k, v := range r.Extra {
		doc[k] = v
	}

	doc["id"] = r.ID.String()
	doc["owner_id"] = r.OwnerID
	doc["name"] = r.Name
	doc["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	doc["last_modified"] = r.LastModified.UTC().Format(time.RFC3339Nano)
	doc["duration_seconds"] = r.DurationSeconds
	doc["size_bytes"] = float64(r.SizeBytes)
	doc["metadata"] = map[string]interface{}{
		"width":      float64(r.Metadata.Width),
		"height":     float64(r.Metadata.Height),
		"frame_rate": r.Metadata.FrameRate,
		"codec":      r.Metadata.Codec,
		"context":    r.Metadata.Context,
		"camera":     r.Metadata.Camera,
	}
	doc["local_state"] = string(r.LocalState)
	doc["local_path"] = r.LocalPath
	doc["thumbnail_path"] = stringOrEmpty(r.ThumbnailPath)
	doc["cloud_key"] = stringOrEmpty(r.CloudKey)
	doc["tags"] = []string(r.Tags)
	doc["is_highlight"] = r.IsHighlight
	doc["sync_status"] = string(r.SyncStatus)
	doc["processing_status"] = string(r.ProcessingStatus)

	if r.FolderID != nil {
		doc["folder_id"] = r.FolderID.String()
	}

	return doc, nil
}

// VideoRecordFromDocument восстанавливает запись из удаленного документа.
// Преобразование может завершиться ошибкой на испорченном документе,
// но никогда не теряет нераспознанные поля
func VideoRecordFromDocument(doc Document) (*VideoRecord, error) {
	idStr, ok := doc["id"].(string)
	if !ok || idStr == "" {
		return nil, fmt.Errorf("document has no id")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", idStr, err)
	}

	rec := &VideoRecord{
		ID:               id,
		OwnerID:          docString(doc, "owner_id"),
		Name:             docString(doc, "name"),
		DurationSeconds:  docFloat(doc, "duration_seconds"),
		SizeBytes:        int64(docFloat(doc, "size_bytes")),
		LocalState:       LocalCopyState(docString(doc, "local_state")),
		LocalPath:        docString(doc, "local_path"),
		IsHighlight:      docBool(doc, "is_highlight"),
		SyncStatus:       SyncStatus(docString(doc, "sync_status")),
		ProcessingStatus: ProcessingStatus(docString(doc, "processing_status")),
		Tags:             pq.StringArray(docStrings(doc, "tags")),
	}

	if rec.OwnerID == "" {
		return nil, fmt.Errorf("document %s has no owner_id", idStr)
	}
	if rec.LocalState == "" {
		rec.LocalState = LocalCopyUnknown
	}

	rec.CreatedAt, err = docTime(doc, "created_at")
	if err != nil {
		return nil, err
	}
	rec.LastModified, err = docTime(doc, "last_modified")
	if err != nil {
		return nil, err
	}

	if s := docString(doc, "cloud_key"); s != "" {
		rec.CloudKey = &s
	}
	if s := docString(doc, "thumbnail_path"); s != "" {
		rec.ThumbnailPath = &s
	}
	if s := docString(doc, "folder_id"); s != "" {
		folderID, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid folder_id %q: %w", s, err)
		}
		rec.FolderID = &folderID
	}

	if md, ok := doc["metadata"].(map[string]interface{}); ok {
		rec.Metadata = VideoMetadata{
			Width:     int(docFloat(md, "width")),
			Height:    int(docFloat(md, "height")),
			FrameRate: docFloat(md, "frame_rate"),
			Codec:     docString(md, "codec"),
			Context:   docString(md, "context"),
			Camera:    docString(md, "camera"),
		}
	}

	// Сохраняем нераспознанные поля
	for k, v := range doc {
		if knownDocumentKeys[k] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = map[string]interface{}{}
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func docString(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docBool(doc map[string]interface{}, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func docFloat(doc map[string]interface{}, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func docTime(doc map[string]interface{}, key string) (time.Time, error) {
	s, ok := doc[key].(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("document field %s is missing", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return t, nil
}

func docStrings(doc map[string]interface{}, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
