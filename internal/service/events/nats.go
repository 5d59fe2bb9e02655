package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher пересылает события во внешний NATS, чтобы потребители
// вне процесса (UI-шлюз, аналитика) могли подписаться на изменения
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject, name string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[Events] NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Events] NATS reconnected: %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[Events] Failed to marshal event %s: %v", e.Type, err)
		return
	}

	if err := p.conn.Publish(fmt.Sprintf("%s.%s", p.subject, e.Type), data); err != nil {
		log.Printf("[Events] Failed to publish event %s: %v", e.Type, err)
	}
}

func (p *NATSPublisher) Close() {
	p.conn.Drain()
}
