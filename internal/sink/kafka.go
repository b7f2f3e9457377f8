// Package sink provides optional secondary fan-out of notable events to
// Kafka, alongside the WebSocket broadcaster.
package sink

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"launchstream/internal/domain"
)

// messageWriter is the slice of kafka.Writer the sink needs; tests stub it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOptions configures the event sink.
type KafkaOptions struct {
	// Brokers is the bootstrap list. Empty disables the sink.
	Brokers []string
	// Topic receives the event envelopes.
	Topic string
	// Logger for publish failures. Defaults to log.Default().
	Logger *log.Logger
}

// KafkaSink publishes event envelopes keyed by mint-bearing payloads'
// event type. Publishing is best effort: failures log, never block the
// pipeline's persistence path.
type KafkaSink struct {
	writer messageWriter
	logger *log.Logger
}

// NewKafkaSink creates a sink, or nil when no brokers are configured.
// A nil *KafkaSink is safe to use; all methods no-op.
func NewKafkaSink(opts KafkaOptions) *KafkaSink {
	if len(opts.Brokers) == 0 {
		return nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	return &KafkaSink{writer: writer, logger: logger}
}

// Publish sends one event envelope. Nil sink or marshal/publish failure is
// absorbed after logging.
func (s *KafkaSink) Publish(ctx context.Context, evt *domain.Event) {
	if s == nil {
		return
	}

	payload, err := evt.Marshal()
	if err != nil {
		s.logger.Printf("[sink] marshal %s event: %v", evt.Type, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(evt.Type),
		Value: payload,
		Time:  time.UnixMilli(evt.Timestamp),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Printf("[sink] publish %s event: %v", evt.Type, err)
	}
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
