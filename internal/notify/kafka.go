package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/blissend/sensor/internal/logger"
	"github.com/blissend/sensor/internal/models"
)

// kafkaSink publishes alert events to a topic so downstream consumers
// (dashboards, pagers) can fan out without this process knowing about
// them. Messages are keyed by severity so one partition sees a given
// severity in order.
type kafkaSink struct {
	writer *kafka.Writer
	closed atomic.Bool

	sent         atomic.Uint64
	failed       atomic.Uint64
	bytesWritten atomic.Uint64
}

// NewKafkaSink creates a sink writing JSON alert events to topic.
func NewKafkaSink(brokers []string, topic string) (Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Async:        false, // Sync for reliability
	}

	return &kafkaSink{writer: writer}, nil
}

func (s *kafkaSink) Send(ctx context.Context, n models.Notification) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}

	data, err := json.Marshal(n)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("serialize notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.Severity),
		Value: data,
		Time:  n.At,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("kafka publish: %w", err)
	}

	s.sent.Add(1)
	s.bytesWritten.Add(uint64(len(data)))
	return nil
}

func (s *kafkaSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	log := logger.WithComponent("notify")
	log.Info().
		Uint64("sent", s.sent.Load()).
		Uint64("failed", s.failed.Load()).
		Uint64("bytes", s.bytesWritten.Load()).
		Msg("kafka sink closed")
	return s.writer.Close()
}
