package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/danielpatrickdp/flowguard/go-supervisor/internal/supervisor"
)

// #region mqtt
// DefaultMQTTTopic is the topic decision records are published on.
const DefaultMQTTTopic = "flowguard/decisions"

var errMQTTPublishTimeout = errors.New("mqtt publish timed out")

// MQTTConfig selects the broker, client id and topic.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// MQTTReporter publishes decision records to an MQTT broker.
type MQTTReporter struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTReporter connects to the broker and returns a reporter on cfg.Topic.
func NewMQTTReporter(ctx context.Context, cfg MQTTConfig) (*MQTTReporter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(2 * time.Second)
	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !waitToken(ctx, token) {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, errMQTTPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return NewMQTTReporterWithClient(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTTReporterWithClient uses an already connected client.
func NewMQTTReporterWithClient(client mqtt.Client, topic string, qos byte) *MQTTReporter {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTTReporter{client: client, topic: topic, qos: qos}
}

// Name identifies the sink in diagnostics.
func (m *MQTTReporter) Name() string { return "mqtt" }

// Report publishes the record and waits until ctx expires for the broker.
func (m *MQTTReporter) Report(ctx context.Context, r supervisor.Report) error {
	body, err := NewRecord(r).Marshal()
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, m.qos, false, body)
	if !waitToken(ctx, token) {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, errMQTTPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTReporter) Close() error {
	m.client.Disconnect(250)
	return nil
}

// waitToken waits for the token until ctx is done. Without a deadline it waits
// one second.
func waitToken(ctx context.Context, token mqtt.Token) bool {
	timeout := time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return false
	}
	return token.WaitTimeout(timeout)
}

// #endregion mqtt
