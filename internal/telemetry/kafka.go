package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region kafka
// kafkaBatchTimeout caps how long a partial batch waits before flushing.
// Reports are written one at a time, so batches hold a single message.
const kafkaBatchTimeout = 5 * time.Millisecond

var errKafkaNilWriter = errors.New("kafka reporter requires a writer")

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConfig selects the brokers and topic decision records are written to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaReporter publishes one JSON message per decision, keyed by action id.
type KafkaReporter struct {
	topic  string
	writer kafkaMessageWriter
	closer func() error
}

// NewKafkaReporter builds a reporter backed by a kafka.Writer.
func NewKafkaReporter(cfg KafkaConfig) (*KafkaReporter, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              1,
		BatchTimeout:           kafkaBatchTimeout,
		AllowAutoTopicCreation: false,
	}
	return &KafkaReporter{topic: cfg.Topic, writer: w, closer: w.Close}, nil
}

// newKafkaReporterWithWriter wires the provided writer. It is used in tests.
func newKafkaReporterWithWriter(topic string, w kafkaMessageWriter) (*KafkaReporter, error) {
	if w == nil {
		return nil, errKafkaNilWriter
	}
	return &KafkaReporter{topic: topic, writer: w}, nil
}

// Name identifies the sink in diagnostics.
func (k *KafkaReporter) Name() string { return "kafka" }

// Report writes the record and waits for the broker acknowledgement.
func (k *KafkaReporter) Report(ctx context.Context, r supervisor.Report) error {
	rec := NewRecord(r)
	body, err := rec.Marshal()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(rec.OriginalActionID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "decision", Value: []byte(rec.Decision)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaReporter) Close() error {
	if k.closer == nil {
		return nil
	}
	return k.closer()
}

// #endregion kafka
