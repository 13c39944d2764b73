package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeUpcomingIngested = "upload.upcoming.ingested"
	TypePastIngested     = "upload.past.ingested"
	TypeTenantCleared    = "tenant.data.cleared"
)

// Event describes a committed change to a tenant's data.
type Event struct {
	Type               string    `json:"type"`
	TenantID           uint      `json:"tenant_id"`
	PatientsCreated    int       `json:"patients_created,omitempty"`
	PredictionsCreated int       `json:"predictions_created,omitempty"`
	RecordsCreated     int       `json:"records_created,omitempty"`
	RecordsDeleted     int64     `json:"records_deleted,omitempty"`
	At                 time.Time `json:"at"`
}

// Publisher delivers events after the owning transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by tenant so a
// tenant's events stay ordered within one partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.TenantID), 10)),
		Value: body,
		Time:  e.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
