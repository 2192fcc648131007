package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/events"
)

// SyncSink forwards state-change events to downstream consumers. Sends are
// at-least-once; consumers deduplicate by event id.
type SyncSink interface {
	Send(ctx context.Context, event events.Event) error
	Close() error
}

type logSink struct {
	logger *zap.Logger
}

// NewLogSink writes events to the structured log only.
func NewLogSink(logger *zap.Logger) SyncSink {
	return &logSink{logger: logger}
}

func (s *logSink) Send(_ context.Context, event events.Event) error {
	s.logger.Info("sync event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (s *logSink) Close() error { return nil }

type redisStreamSink struct {
	client    *redis.Client
	stream    string
	dedupeTTL time.Duration
}

// NewRedisStreamSink appends events to a Redis stream, skipping event ids
// already delivered within dedupeTTL.
func NewRedisStreamSink(client *redis.Client, stream string, dedupeTTL time.Duration) SyncSink {
	return &redisStreamSink{client: client, stream: stream, dedupeTTL: dedupeTTL}
}

func (s *redisStreamSink) Send(ctx context.Context, event events.Event) error {
	dedupeKey := "sync:sent:" + event.ID
	first, err := s.client.SetNX(ctx, dedupeKey, 1, s.dedupeTTL).Result()
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"event_id":  event.ID,
			"type":      string(event.Type),
			"ticket_id": event.TicketID,
			"body":      string(body),
		},
	}).Err()
	if err != nil {
		s.client.Del(ctx, dedupeKey)
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

func (s *redisStreamSink) Close() error { return nil }

type kafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink publishes events keyed by ticket id so each ticket's events
// stay ordered within one partition.
func NewKafkaSink(brokers []string, topic string) SyncSink {
	return &kafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (s *kafkaSink) Send(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	})
}

func (s *kafkaSink) Close() error { return s.writer.Close() }
