package service

import (
	"context"
	"errors"
	"log"
	"time"

	"replaydrive/internal/domain"
	"replaydrive/internal/service/events"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryAction повторяет неудавшуюся операцию
type RetryAction func(ctx context.Context) error

// RecoveryService принимает классифицированные ошибки и решает,
// повторять операцию или поднимать её наверх. Транзиентные виды
// повторяются с экспоненциальной выдержкой и ограниченным числом
// попыток; аутентификация и квота поднимаются сразу
type RecoveryService struct {
	events      events.Publisher
	maxAttempts int
	baseDelay   time.Duration
}

func NewRecoveryService(pub events.Publisher) *RecoveryService {
	return &RecoveryService{
		events:      pub,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// Report классифицирует ошибку и применяет политику восстановления.
// Возвращает nil, если повтор в итоге удался, иначе классифицированную
// ошибку для поднятия наверх
func (s *RecoveryService) Report(ctx context.Context, err error, operation string, retry RetryAction) error {
	if err == nil {
		return nil
	}

	classified := domain.Classify(err)
	log.Printf("[Recovery] %s failed (%s): %v", operation, classified.Kind, classified.Err)

	// Частичный пакет раскрываем поэлементно: успешные элементы
	// не откатываются из-за неуспешных
	if classified.Kind == domain.ErrorKindPartialBatch {
		var be *domain.BatchError
		if errors.As(classified.Err, &be) {
			for id, itemErr := range be.Failed {
				itemClassified := domain.Classify(itemErr)
				log.Printf("[Recovery] %s: record %s failed (%s): %v", operation, id, itemClassified.Kind, itemErr)
				s.publish(operation, itemClassified)
			}
		}
		return classified
	}

	if !classified.Retryable() || retry == nil {
		s.publish(operation, classified)
		return classified
	}

	delay := s.baseDelay
	if classified.RetryAfter != nil && *classified.RetryAfter > delay {
		delay = *classified.RetryAfter
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return domain.Classify(ctx.Err())
		case <-time.After(delay):
		}

		log.Printf("[Recovery] Retrying %s (attempt %d/%d)", operation, attempt, s.maxAttempts)

		retryErr := retry(ctx)
		if retryErr == nil {
			log.Printf("[Recovery] %s succeeded after %d retry attempt(s)", operation, attempt)
			return nil
		}

		classified = domain.Classify(retryErr)
		if !classified.Retryable() {
			break
		}
		delay *= 2
	}

	log.Printf("[Recovery] Giving up on %s: %v", operation, classified)
	s.publish(operation, classified)
	return classified
}

func (s *RecoveryService) publish(operation string, se *domain.SyncError) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{
		Type: events.EventSyncError,
		Payload: map[string]interface{}{
			"operation": operation,
			"kind":      string(se.Kind),
			"error":     se.Error(),
			"retryable": se.Retryable(),
		},
	})
}
