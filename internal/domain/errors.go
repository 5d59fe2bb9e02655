package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorKind — таксономия ошибок синхронизации
type ErrorKind string

const (
	ErrorKindNetwork      ErrorKind = "network"       // сеть недоступна или таймаут
	ErrorKindAuth         ErrorKind = "auth"          // требуется повторная аутентификация
	ErrorKindQuota        ErrorKind = "quota"         // квота хранилища исчерпана
	ErrorKindRateLimited  ErrorKind = "rate_limited"  // превышен лимит запросов
	ErrorKindConflict     ErrorKind = "conflict"      // конфликт одной записи
	ErrorKindPartialBatch ErrorKind = "partial_batch" // часть пакета завершилась с ошибкой
	ErrorKindUnknown      ErrorKind = "unknown"
)

// SyncError — классифицированная ошибка движка синхронизации
type SyncError struct {
	Kind       ErrorKind
	RetryAfter *time.Duration // подсказка сервера для rate_limited
	Err        error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Retryable сообщает, допускается ли автоматический повтор.
// Аутентификация и квота требуют внешнего вмешательства, конфликты —
// явного решения; повторяем только транзиентные виды
func (e *SyncError) Retryable() bool {
	switch e.Kind {
	case ErrorKindNetwork, ErrorKindRateLimited:
		return true
	}
	return false
}

// NewSyncError оборачивает ошибку с заданным видом
func NewSyncError(kind ErrorKind, err error) *SyncError {
	return &SyncError{Kind: kind, Err: err}
}

// Classify приводит произвольную ошибку к таксономии. Уже
// классифицированные ошибки возвращаются как есть
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}

	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	var be *BatchError
	if errors.As(err, &be) {
		return &SyncError{Kind: ErrorKindPartialBatch, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &SyncError{Kind: ErrorKindNetwork, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SyncError{Kind: ErrorKindNetwork, Err: err}
	}

	// Коды провайдеров приходят строками; разбираем типичные
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"):
		return &SyncError{Kind: ErrorKindNetwork, Err: err}
	case strings.Contains(msg, "accessdenied"),
		strings.Contains(msg, "invalidaccesskeyid"),
		strings.Contains(msg, "signaturedoesnotmatch"),
		strings.Contains(msg, "expiredtoken"):
		return &SyncError{Kind: ErrorKindAuth, Err: err}
	case strings.Contains(msg, "quotaexceeded"),
		strings.Contains(msg, "quota exceeded"):
		return &SyncError{Kind: ErrorKindQuota, Err: err}
	case strings.Contains(msg, "slowdown"),
		strings.Contains(msg, "toomanyrequests"),
		strings.Contains(msg, "rate limit"):
		return &SyncError{Kind: ErrorKindRateLimited, Err: err}
	}

	return &SyncError{Kind: ErrorKindUnknown, Err: err}
}

// BatchError собирает ошибки пакетной операции по идентификаторам.
// Успешные элементы пакета не откатываются из-за неуспешных
type BatchError struct {
	Failed map[uuid.UUID]error
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return fmt.Sprintf("batch failed for %d record(s): %s", len(e.Failed), strings.Join(ids, ", "))
}
