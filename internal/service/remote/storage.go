package remote

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound возвращается всеми реализациями при отсутствии объекта
var ErrObjectNotFound = errors.New("object not found")

// ProgressFunc получает долю переданных данных в диапазоне [0,1].
// Реализации хранилища обязаны вызывать её монотонно неубывающе
type ProgressFunc func(fraction float64)

// ObjectInfo описывает объект удаленного хранилища
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage абстрагирует удаленное объектное хранилище. Операции должны
// быть идемпотентны при повторе той же логической операции
type Storage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, onProgress ProgressFunc) error
	Download(ctx context.Context, key string, w io.Writer, onProgress ProgressFunc) error
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// progressReader считает прочитанные байты и сообщает монотонный прогресс
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastReport float64
	onProgress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, onProgress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, onProgress: onProgress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.report()
	}
	if err == io.EOF {
		p.finish()
	}
	return n, err
}

func (p *progressReader) report() {
	if p.onProgress == nil || p.total <= 0 {
		return
	}
	fraction := float64(p.read) / float64(p.total)
	if fraction > 1 {
		fraction = 1
	}
	// Никогда не сообщаем меньше уже сообщенного
	if fraction > p.lastReport {
		p.lastReport = fraction
		p.onProgress(fraction)
	}
}

func (p *progressReader) finish() {
	if p.onProgress != nil && p.lastReport < 1 {
		p.lastReport = 1
		p.onProgress(1)
	}
}

// progressWriter — то же для скачивания
type progressWriter struct {
	w          io.Writer
	total      int64
	written    int64
	lastReport float64
	onProgress ProgressFunc
}

func newProgressWriter(w io.Writer, total int64, onProgress ProgressFunc) *progressWriter {
	return &progressWriter{w: w, total: total, onProgress: onProgress}
}

func (p *progressWriter) Write(buf []byte) (int, error) {
	n, err := p.w.Write(buf)
	if n > 0 {
		p.written += int64(n)
		if p.onProgress != nil && p.total > 0 {
			fraction := float64(p.written) / float64(p.total)
			if fraction > 1 {
				fraction = 1
			}
			if fraction > p.lastReport {
				p.lastReport = fraction
				p.onProgress(fraction)
			}
		}
	}
	return n, err
}
