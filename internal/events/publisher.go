// Package events publishes request lifecycle events to Kafka. Delivery is
// best effort: a broker outage must never fail the operation that produced
// the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifeline/internal/platform/config"
	id "lifeline/pkg/domain"
)

// EventType names a lifecycle transition.
type EventType string

const (
	TypeRequestSubmitted EventType = "request.submitted"
	TypeRequestApproved  EventType = "request.approved"
	TypeRequestRejected  EventType = "request.rejected"
	TypeRequestCompleted EventType = "request.completed"
	TypeRequestCancelled EventType = "request.cancelled"
	TypeDonationRecorded EventType = "donation.recorded"
)

// Event is the wire payload. RequestID keys the record so consumers see one
// request's transitions in order.
type Event struct {
	Type       EventType     `json:"type"`
	RequestID  id.RequestID  `json:"request_id"`
	HospitalID id.HospitalID `json:"hospital_id"`
	DonorID    id.DonorID    `json:"donor_id"`
	BloodGroup id.BloodGroup `json:"blood_group,omitempty"`
	Urgency    id.Urgency    `json:"urgency,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Publisher emits lifecycle events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
	Close()
}

// KafkaPublisher produces events asynchronously; produce errors are logged,
// never surfaced to callers.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}
	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal lifecycle event", "type", evt.Type, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(evt.RequestID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce lifecycle event", "type", evt.Type, "request_id", evt.RequestID, "error", err)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Flush(context.Background())
	p.client.Close()
}

// Noop is the publisher used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
func (Noop) Close()                         {}
