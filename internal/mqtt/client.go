package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// Client owns the broker session shared by the Subscriber and the Publisher.
// It satisfies both Subscribing and Publishing.
type Client struct {
	paho   mqtt.Client
	broker string
	log    *slog.Logger

	connects atomic.Int64
	lost     atomic.Int64
}

var (
	_ Subscribing = (*Client)(nil)
	_ Publishing  = (*Client)(nil)
)

// Dial connects to the broker and returns once the first CONNACK arrives,
// the connect timeout passes, or ctx ends. Later outages are healed by
// paho's auto reconnect; the persistent session lets the broker restore
// subscriptions.
func Dial(ctx context.Context, config ClientConfig, log *slog.Logger) (*Client, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = time.Minute
	}

	c := &Client{broker: config.Broker, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(config.KeepAlive).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(config.ConnectTimeout).
		SetDefaultPublishHandler(c.onUnrouted).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	c.paho = mqtt.NewClient(opts)

	token := c.paho.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", config.Broker, err)
		}
	case <-time.After(config.ConnectTimeout):
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timed out after %s", config.Broker, config.ConnectTimeout)
	case <-ctx.Done():
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", config.Broker, ctx.Err())
	}
	return c, nil
}

// Subscribe registers handler for topic on the shared session
func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	return c.paho.Subscribe(topic, qos, handler)
}

// Publish hands payload to paho's outbound queue
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return c.paho.Publish(topic, qos, retained, payload)
}

// IsConnected reports whether the session is currently up. It is false
// while paho is reconnecting.
func (c *Client) IsConnected() bool {
	return c.paho.IsConnectionOpen()
}

// Reconnects is the number of successful connects after the first one
func (c *Client) Reconnects() int64 {
	if n := c.connects.Load(); n > 1 {
		return n - 1
	}
	return 0
}

// Close disconnects, giving in-flight work a short grace period
func (c *Client) Close() {
	c.paho.Disconnect(250)
	c.log.Info("MQTT client disconnected", "broker", c.broker)
}

func (c *Client) onUnrouted(_ mqtt.Client, msg mqtt.Message) {
	c.log.Debug("MQTT message on unhandled topic", "topic", msg.Topic())
}

func (c *Client) onConnect(mqtt.Client) {
	if n := c.connects.Add(1); n > 1 {
		c.log.Info("MQTT connection restored", "broker", c.broker, "reconnects", n-1, "outages", c.lost.Load())
		return
	}
	c.log.Info("MQTT client connected", "broker", c.broker)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.lost.Add(1)
	c.log.Warn("MQTT connection lost", "broker", c.broker, "error", err)
}

func (c *Client) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.log.Debug("MQTT reconnecting", "broker", c.broker)
}
