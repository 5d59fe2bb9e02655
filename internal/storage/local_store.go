package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore владеет локальными видеофайлами и их миниатюрами.
// Файловое пространство под baseDir принадлежит только этому типу:
// остальные компоненты работают с файлами исключительно через его методы
type LocalStore struct {
	baseDir  string
	thumbDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	thumbDir := filepath.Join(baseDir, "thumbnails")
	for _, dir := range []string{baseDir, thumbDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &LocalStore{baseDir: baseDir, thumbDir: thumbDir}, nil
}

// Path возвращает путь файла записи
func (s *LocalStore) Path(id uuid.UUID) string {
	return filepath.Join(s.baseDir, id.String()+".mp4")
}

// ThumbnailPath возвращает путь миниатюры записи
func (s *LocalStore) ThumbnailPath(id uuid.UUID) string {
	return filepath.Join(s.thumbDir, id.String()+".jpg")
}

// Store записывает содержимое во временный файл и атомарно переименовывает.
// Частично записанный файл никогда не виден под окончательным именем
func (s *LocalStore) Store(id uuid.UUID, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(s.baseDir, "incoming-*.part")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("failed to write video data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	dst := s.Path(id)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return dst, size, nil
}

// Open открывает локальный файл записи для чтения
func (s *LocalStore) Open(id uuid.UUID) (*os.File, int64, error) {
	path := s.Path(id)

	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("local file for %s not found: %w", id, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open local file: %w", err)
	}

	return f, info.Size(), nil
}

// Exists сообщает о наличии локального файла
func (s *LocalStore) Exists(id uuid.UUID) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete удаляет локальный файл записи. Отсутствующий файл — не ошибка
func (s *LocalStore) Delete(id uuid.UUID) error {
	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete local file: %w", err)
	}
	return nil
}

// DeleteThumbnail удаляет миниатюру записи
func (s *LocalStore) DeleteThumbnail(id uuid.UUID) error {
	if err := os.Remove(s.ThumbnailPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete thumbnail: %w", err)
	}
	return nil
}

// SaveThumbnail сохраняет готовую миниатюру (JPEG)
func (s *LocalStore) SaveThumbnail(id uuid.UUID, data []byte) (string, error) {
	path := s.ThumbnailPath(id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return path, nil
}

// Count возвращает количество локальных видеофайлов
func (s *LocalStore) Count() (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read base directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".mp4" {
			count++
		}
	}

	return count, nil
}

// TotalSize возвращает суммарный размер локальных видеофайлов в байтах
func (s *LocalStore) TotalSize() (int64, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read base directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp4" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("[LocalStore] Warning: failed to stat %s: %v", entry.Name(), err)
			continue
		}
		total += info.Size()
	}

	return total, nil
}

// ListIDs возвращает идентификаторы записей, имеющих локальный файл
func (s *LocalStore) ListIDs() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp4" {
			continue
		}
		name := entry.Name()
		id, err := uuid.Parse(name[:len(name)-len(".mp4")])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
