package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"replaydrive/internal/domain"
)

// RemoteItem — документ вместе с серверным временем модификации.
// Серверное время назначается хранилищем при записи и служит часами
// для обнаружения конфликтов
type RemoteItem struct {
	ID         string
	ModifiedAt time.Time
	Document   domain.Document
}

// DocumentStore — документное представление записей в удаленном бекенде.
// Каждая запись хранится одним документом, ключ — идентификатор записи
type DocumentStore interface {
	Put(ctx context.Context, collection, owner string, doc domain.Document) (time.Time, error)
	Get(ctx context.Context, collection, owner, id string) (*RemoteItem, error)
	Delete(ctx context.Context, collection, owner, id string) error
	List(ctx context.Context, collection, owner string) ([]RemoteItem, error)
	ListModifiedSince(ctx context.Context, collection, owner string, since time.Time) ([]RemoteItem, error)
}

// ObjectDocumentStore хранит документы как JSON-объекты поверх Storage.
// Время модификации объекта в хранилище и есть серверное время документа
type ObjectDocumentStore struct {
	store Storage
}

func NewObjectDocumentStore(store Storage) *ObjectDocumentStore {
	return &ObjectDocumentStore{store: store}
}

func documentKey(collection, owner, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", collection, owner, id)
}

func (s *ObjectDocumentStore) Put(ctx context.Context, collection, owner string, doc domain.Document) (time.Time, error) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return time.Time{}, fmt.Errorf("document has no id")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to marshal document: %w", err)
	}

	key := documentKey(collection, owner, id)
	if err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), nil); err != nil {
		return time.Time{}, fmt.Errorf("failed to store document %s: %w", id, err)
	}

	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read back document time: %w", err)
	}

	return info.LastModified, nil
}

func (s *ObjectDocumentStore) Get(ctx context.Context, collection, owner, id string) (*RemoteItem, error) {
	key := documentKey(collection, owner, id)

	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.store.Download(ctx, key, &buf, nil); err != nil {
		return nil, fmt.Errorf("failed to download document %s: %w", id, err)
	}

	var doc domain.Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}

	return &RemoteItem{ID: id, ModifiedAt: info.LastModified, Document: doc}, nil
}

func (s *ObjectDocumentStore) Delete(ctx context.Context, collection, owner, id string) error {
	return s.store.Delete(ctx, documentKey(collection, owner, id))
}

func (s *ObjectDocumentStore) List(ctx context.Context, collection, owner string) ([]RemoteItem, error) {
	prefix := fmt.Sprintf("%s/%s/", collection, owner)

	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	items := make([]RemoteItem, 0, len(infos))
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}

		var buf bytes.Buffer
		if err := s.store.Download(ctx, info.Key, &buf, nil); err != nil {
			return nil, fmt.Errorf("failed to download document %s: %w", info.Key, err)
		}

		var doc domain.Document
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", info.Key, err)
		}

		id, _ := doc["id"].(string)
		if id == "" {
			// Документ без идентификатора бесполезен для синхронизации
			continue
		}

		items = append(items, RemoteItem{ID: id, ModifiedAt: info.LastModified, Document: doc})
	}

	return items, nil
}

func (s *ObjectDocumentStore) ListModifiedSince(ctx context.Context, collection, owner string, since time.Time) ([]RemoteItem, error) {
	items, err := s.List(ctx, collection, owner)
	if err != nil {
		return nil, err
	}

	filtered := items[:0]
	for _, item := range items {
		if item.ModifiedAt.After(since) {
			filtered = append(filtered, item)
		}
	}

	return filtered, nil
}
