package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"replaydrive/internal/domain"
	"replaydrive/internal/repository"
	"replaydrive/internal/service/remote"
)

// fakeCatalog — каталог записей в памяти для тестов сервисов
type fakeCatalog struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.VideoRecord

	// onUpdate позволяет тесту вмешаться в момент обновления записи
	onUpdate func(rec *domain.VideoRecord)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[uuid.UUID]domain.VideoRecord)}
}

func (c *fakeCatalog) Create(ctx context.Context, rec *domain.VideoRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.ID] = *rec
	return nil
}

func (c *fakeCatalog) Update(ctx context.Context, rec *domain.VideoRecord) error {
	if c.onUpdate != nil {
		c.onUpdate(rec)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[rec.ID]; !ok {
		return repository.ErrRecordNotFound
	}
	c.records[rec.ID] = *rec
	return nil
}

func (c *fakeCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
	return nil
}

func (c *fakeCatalog) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

func (c *fakeCatalog) ListByOwner(ctx context.Context, ownerID string) ([]domain.VideoRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.VideoRecord
	for _, rec := range c.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *fakeCatalog) CountPending(ctx context.Context, ownerID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, rec := range c.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if rec.SyncStatus == domain.SyncStatusNotSynced || rec.SyncStatus == domain.SyncStatusConflict {
			count++
		}
	}
	return count, nil
}

func (c *fakeCatalog) CountLocal(ctx context.Context, ownerID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, rec := range c.records {
		if rec.OwnerID == ownerID && rec.LocalState == domain.LocalCopyPresent {
			count++
		}
	}
	return count, nil
}

func (c *fakeCatalog) ListEvictable(ctx context.Context, ownerID string, limit int) ([]domain.VideoRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.VideoRecord
	for _, rec := range c.records {
		if rec.OwnerID == ownerID && rec.LocalState == domain.LocalCopyPresent && rec.CloudKey != nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCatalog) get(id uuid.UUID) domain.VideoRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[id]
}

// fakeFolders — каталог общих папок в памяти
type fakeFolders struct {
	mu      sync.Mutex
	folders map[uuid.UUID]domain.SharedFolder
}

func newFakeFolders() *fakeFolders {
	return &fakeFolders{folders: make(map[uuid.UUID]domain.SharedFolder)}
}

func (f *fakeFolders) add(folder domain.SharedFolder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[folder.ID] = folder
}

func (f *fakeFolders) GetByID(ctx context.Context, id uuid.UUID) (*domain.SharedFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[id]
	if !ok {
		return nil, repository.ErrFolderNotFound
	}
	out := folder
	return &out, nil
}

// blockingStorage — удаленное хранилище с управляемыми загрузками:
// до release загрузка стоит на контрольной точке, сообщив частичный
// прогресс. Объект появляется только после полного завершения
type blockingStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	active    int
	maxActive int

	// release == nil означает свободный проход с задержкой delay
	release chan struct{}
	delay   time.Duration
}

func newBlockingStorage() *blockingStorage {
	return &blockingStorage{
		objects: make(map[string][]byte),
		release: make(chan struct{}),
	}
}

func newDelayStorage(delay time.Duration) *blockingStorage {
	return &blockingStorage{
		objects: make(map[string][]byte),
		delay:   delay,
	}
}

func (s *blockingStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, onProgress remote.ProgressFunc) error {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if onProgress != nil {
		onProgress(0.4)
	}

	if s.release != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.release:
		}
	} else if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(1)
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *blockingStorage) Download(ctx context.Context, key string, w io.Writer, onProgress remote.ProgressFunc) error {
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return remote.ErrObjectNotFound
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

func (s *blockingStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *blockingStorage) Stat(ctx context.Context, key string) (*remote.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, remote.ErrObjectNotFound
	}
	return &remote.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()}, nil
}

func (s *blockingStorage) List(ctx context.Context, prefix string) ([]remote.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []remote.ObjectInfo
	for key, data := range s.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, remote.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()})
		}
	}
	return out, nil
}

func (s *blockingStorage) releaseAll() {
	close(s.release)
}

func (s *blockingStorage) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *blockingStorage) maxActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

func (s *blockingStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// fastRecovery — политика восстановления с минимальными задержками
func fastRecovery() *RecoveryService {
	rs := NewRecoveryService(nil)
	rs.baseDelay = time.Millisecond
	return rs
}
