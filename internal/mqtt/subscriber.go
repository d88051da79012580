package mqtt

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/models"
)

// Subscribing is the part of the paho client the Subscriber needs
type Subscribing interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// DropRecorder is told about events discarded because the consumer fell behind
type DropRecorder interface {
	EventDropped(channel string)
}

type nopDrops struct{}

func (nopDrops) EventDropped(string) {}

// Subscriber handles MQTT subscriptions and writes sensor events to a channel
type Subscriber struct {
	client Subscribing
	qos    byte

	// Output channel (written by subscriber, read by the bridge service)
	Events chan models.SensorEvent

	// topic -> sensor channel id
	topics      map[string]string
	sendTimeout time.Duration
	clock       clockwork.Clock
	drops       DropRecorder
	log         *slog.Logger
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	// Topics maps sensor channel id to its topic, e.g. "tds" -> "/topic/tds"
	Topics      map[string]string
	QoS         byte
	SendTimeout time.Duration
}

// NewSubscriber creates a new MQTT subscriber writing into events
func NewSubscriber(
	client Subscribing,
	config SubscriberConfig,
	events chan models.SensorEvent,
	clock clockwork.Clock,
	drops DropRecorder,
	log *slog.Logger,
) *Subscriber {
	if config.SendTimeout <= 0 {
		config.SendTimeout = time.Second
	}
	if drops == nil {
		drops = nopDrops{}
	}

	topics := make(map[string]string, len(config.Topics))
	for channel, topic := range config.Topics {
		if topic != "" {
			topics[topic] = channel
		}
	}

	return &Subscriber{
		client:      client,
		qos:         config.QoS,
		Events:      events,
		topics:      topics,
		sendTimeout: config.SendTimeout,
		clock:       clock,
		drops:       drops,
		log:         log,
	}
}

// SubscribeAll subscribes to all configured sensor topics
func (s *Subscriber) SubscribeAll() error {
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		channel := s.topics[topic]
		if err := s.subscribeToTopic(topic, s.handlerFor(channel)); err != nil {
			return fmt.Errorf("failed to subscribe to %s topic: %w", channel, err)
		}
		s.log.Info("Subscribed to sensor topic", "channel", channel, "topic", topic)
	}
	return nil
}

// subscribeToTopic is a helper function to subscribe to a topic with a handler
func (s *Subscriber) subscribeToTopic(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, s.qos, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// handlerFor returns the message handler for one sensor channel. The payload
// is forwarded untouched; parsing happens downstream so the raw text still
// reaches live viewers.
func (s *Subscriber) handlerFor(channel string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		event := models.SensorEvent{
			Channel:    channel,
			RawValue:   string(msg.Payload()),
			ReceivedAt: s.clock.Now(),
		}

		s.log.Debug("Received sensor message", "channel", channel, "topic", msg.Topic(), "payload", event.RawValue)

		// Write to channel (non-blocking with timeout)
		select {
		case s.Events <- event:
		case <-s.clock.After(s.sendTimeout):
			s.drops.EventDropped(channel)
			s.log.Warn("Sensor event channel full, dropping message", "channel", channel)
		}
	}
}
