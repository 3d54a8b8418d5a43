package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectMessageSent   = "chat.message.sent"
	SubjectQuotaExceeded = "chat.quota.exhausted"
	SubjectLikeToggled   = "post.like.toggled"
)

type Event struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func NewEvent(subject string, data any, now time.Time) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: now.UTC().Format(time.RFC3339),
		Data:       payload,
	}, nil
}

type NATSPublisher struct {
	conn *nats.Conn
}

func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("gym-chat"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, data any) error {
	event, err := NewEvent(subject, data, time.Now())
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, encoded)
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NopPublisher drops every event. Used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error {
	return nil
}
