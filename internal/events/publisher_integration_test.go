//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifeline/internal/events"
	"lifeline/internal/platform/config"
	id "lifeline/pkg/domain"
	"lifeline/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaPublisherSuite) newConsumer(topic string) *kgo.Client {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	return client
}

func (s *KafkaPublisherSuite) consume(client *kgo.Client, want int) []*kgo.Record {
	deadline := time.Now().Add(15 * time.Second)
	var records []*kgo.Record
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := client.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	s.Require().Len(records, want, "expected %d records before the deadline", want)
	return records
}

func (s *KafkaPublisherSuite) TestPublishRoundTrip() {
	ctx := context.Background()
	topic := "lifeline.events.roundtrip"

	pub, err := events.NewKafkaPublisher(ctx, config.KafkaConfig{
		Brokers: s.redpanda.Brokers,
		Topic:   topic,
	}, slog.New(slog.DiscardHandler))
	s.Require().NoError(err)

	evt := events.Event{
		Type:       events.TypeRequestApproved,
		RequestID:  id.NewRequestID(),
		HospitalID: id.NewHospitalID(),
		BloodGroup: id.BloodGroupABNeg,
		Urgency:    id.UrgencyCritical,
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	pub.Publish(ctx, evt)
	pub.Close()

	consumer := s.newConsumer(topic)
	defer consumer.Close()

	records := s.consume(consumer, 1)
	s.Equal(evt.RequestID.String(), string(records[0].Key),
		"records are keyed by request so one request's transitions stay ordered")

	var got events.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(evt.Type, got.Type)
	s.Equal(evt.RequestID, got.RequestID)
	s.Equal(evt.HospitalID, got.HospitalID)
	s.Equal(evt.BloodGroup, got.BloodGroup)
	s.Equal(evt.Urgency, got.Urgency)
	s.WithinDuration(evt.OccurredAt, got.OccurredAt, time.Second)
}

func (s *KafkaPublisherSuite) TestLifecycleSequenceSharesAKey() {
	ctx := context.Background()
	topic := "lifeline.events.sequence"

	pub, err := events.NewKafkaPublisher(ctx, config.KafkaConfig{
		Brokers: s.redpanda.Brokers,
		Topic:   topic,
	}, slog.New(slog.DiscardHandler))
	s.Require().NoError(err)

	requestID := id.NewRequestID()
	hospitalID := id.NewHospitalID()
	sequence := []events.EventType{
		events.TypeRequestSubmitted,
		events.TypeRequestApproved,
		events.TypeRequestCompleted,
		events.TypeDonationRecorded,
	}
	for _, typ := range sequence {
		pub.Publish(ctx, events.Event{
			Type:       typ,
			RequestID:  requestID,
			HospitalID: hospitalID,
			OccurredAt: time.Now().UTC(),
		})
	}
	pub.Close()

	consumer := s.newConsumer(topic)
	defer consumer.Close()

	records := s.consume(consumer, len(sequence))
	var got []events.EventType
	for _, r := range records {
		s.Equal(requestID.String(), string(r.Key))
		var evt events.Event
		s.Require().NoError(json.Unmarshal(r.Value, &evt))
		got = append(got, evt.Type)
	}
	s.Equal(sequence, got, "same-key records preserve publish order")
}

func (s *KafkaPublisherSuite) TestPublisherRefusesUnreachableBrokers() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := events.NewKafkaPublisher(ctx, config.KafkaConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topic:   "lifeline.events.unreachable",
	}, slog.New(slog.DiscardHandler))
	s.Error(err)
}
