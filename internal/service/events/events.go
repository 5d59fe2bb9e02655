package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType перечисляет события движка, заменяющие наблюдаемое
// мутабельное состояние: потребители подписываются на поток
type EventType string

const (
	EventRecordCreated    EventType = "record_created"
	EventRecordUpdated    EventType = "record_updated"
	EventRecordDeleted    EventType = "record_deleted"
	EventSyncStateChanged EventType = "sync_state_changed"
	EventTransferProgress EventType = "transfer_progress"
	EventConflictDetected EventType = "conflict_detected"
	EventSyncError        EventType = "sync_error"
)

// Event — одно изменение состояния движка
type Event struct {
	Type     EventType   `json:"type"`
	RecordID uuid.UUID   `json:"record_id,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// Publisher публикует события движка
type Publisher interface {
	Publish(e Event)
}

const subscriberBuffer = 64

// Bus — внутрипроцессная шина с раздачей события всем подписчикам.
// Медленный подписчик не блокирует движок: переполненный буфер
// приводит к потере события у этого подписчика
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe возвращает канал событий и функцию отписки
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Close закрывает шину и все подписки
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Fanout объединяет несколько публикаторов в один
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}
