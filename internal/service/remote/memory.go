package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

const memoryChunkSize = 32 * 1024

type memoryObject struct {
	data     []byte
	modified time.Time
}

// MemoryStorage — хранилище в памяти. Используется в тестах и как
// локальный вариант провайдера без внешних зависимостей
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

// Upload читает источник по частям, проверяя отмену контекста на каждой
// итерации. Объект становится видимым только после полного чтения
func (s *MemoryStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, onProgress ProgressFunc) error {
	if key == "" || r == nil {
		return fmt.Errorf("key and reader are required")
	}

	var buf bytes.Buffer
	pr := newProgressReader(r, size, onProgress)
	chunk := make([]byte, memoryChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := pr.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf.Bytes(), modified: time.Now().UTC()}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) Download(ctx context.Context, key string, w io.Writer, onProgress ProgressFunc) error {
	s.mu.Lock()
	obj, ok := s.objects[key]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	pw := newProgressWriter(w, int64(len(obj.data)), onProgress)
	for offset := 0; offset < len(obj.data); offset += memoryChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := offset + memoryChunkSize
		if end > len(obj.data) {
			end = len(obj.data)
		}
		if _, err := pw.Write(obj.data[offset:end]); err != nil {
			return err
		}
	}

	if onProgress != nil {
		onProgress(1)
	}

	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	return &ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified}, nil
}

func (s *MemoryStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var objects []ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.modified,
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	return objects, nil
}

// SetModified подменяет время модификации объекта. Нужно тестам,
// моделирующим "удаленная сторона новее"
func (s *MemoryStorage) SetModified(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obj, ok := s.objects[key]; ok {
		obj.modified = t
		s.objects[key] = obj
	}
}

// Exists сообщает о наличии объекта
func (s *MemoryStorage) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}
