package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when a publish is attempted while the bus is down
var ErrNotConnected = errors.New("mqtt client not connected")

// Publishing is the part of the paho client the Publisher needs
type Publishing interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// Publisher sends encoded actuator commands to the control topic
type Publisher struct {
	client Publishing
	topic  string
	qos    byte
	log    *slog.Logger
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	ControlTopic string // e.g., "/topic/qos0"
	QoS          byte
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client Publishing, config PublisherConfig, log *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  config.ControlTopic,
		qos:    config.QoS,
		log:    log,
	}
}

// Topic returns the control topic commands are published to
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish sends payload to the control topic without waiting for the broker.
// The returned channel yields exactly one value: nil once the broker has the
// message, or the failure. Cancelling ctx abandons the wait, not the publish.
func (p *Publisher) Publish(ctx context.Context, payload string) <-chan error {
	result := make(chan error, 1)

	if !p.client.IsConnected() {
		result <- ErrNotConnected
		return result
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)

	go func() {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				result <- fmt.Errorf("failed to publish command: %w", err)
				return
			}
			p.log.Debug("Published command", "topic", p.topic, "payload", payload)
			result <- nil
		case <-ctx.Done():
			result <- ctx.Err()
		}
	}()

	return result
}
