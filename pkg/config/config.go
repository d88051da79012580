package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"telemetry-bridge/internal/models"
)

// History drivers
const (
	HistoryClickHouse = "clickhouse"
	HistoryPostgres   = "postgres"
	HistoryNone       = "none"
)

// Config holds the bridge settings bound from the environment
type Config struct {
	// MQTT Configuration
	MQTTBroker   string `env:"MQTT_BROKER" default:"tcp://localhost:1883"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" default:"telemetry-bridge"`
	MQTTUsername string `env:"MQTT_USERNAME"`
	MQTTPassword string `env:"MQTT_PASSWORD"`
	MQTTQoS      int    `env:"MQTT_QOS" default:"0"`

	// Sensor topics
	MQTTTopicTDS            string `env:"MQTT_TOPIC_TDS" default:"/topic/tds"`
	MQTTTopicTemperature    string `env:"MQTT_TOPIC_TEMPERATURE" default:"/topic/temperature"`
	MQTTTopicHumidity       string `env:"MQTT_TOPIC_HUMIDITY" default:"/topic/humidity"`
	MQTTTopicRain           string `env:"MQTT_TOPIC_RAIN" default:"/topic/rain"`
	MQTTTopicLight          string `env:"MQTT_TOPIC_LIGHT" default:"/topic/light"`
	MQTTTopicAirTemperature string `env:"MQTT_TOPIC_AIR_TEMPERATURE" default:"/topic/air_temperature"`

	// Actuator command topic
	MQTTTopicControl string `env:"MQTT_TOPIC_CONTROL" default:"/topic/qos0"`

	// HTTP
	HTTPPort int `env:"HTTP_PORT" default:"8080"`

	// History store
	HistoryDriver  string `env:"HISTORY_DRIVER" default:"clickhouse"`
	ClickHouseAddr string `env:"CLICKHOUSE_ADDR" default:"localhost:9000"`
	ClickHouseDB   string `env:"CLICKHOUSE_DB" default:"telemetry"`
	ClickHouseUser string `env:"CLICKHOUSE_USER" default:"default"`
	ClickHousePass string `env:"CLICKHOUSE_PASS"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RecordReadings bool   `env:"RECORD_READINGS" default:"true"`

	// Buffers and limits
	ViewerBuffer      int           `env:"VIEWER_BUFFER" default:"256"`
	IngestBuffer      int           `env:"INGEST_BUFFER" default:"512"`
	IngestTimeout     time.Duration `env:"INGEST_TIMEOUT" default:"1s"`
	ReportDefaultRows int           `env:"REPORT_DEFAULT_ROWS" default:"100"`
	ReportMaxRows     int           `env:"REPORT_MAX_ROWS" default:"10000"`
	PublishTimeout    time.Duration `env:"PUBLISH_TIMEOUT" default:"5s"`
	CommandRate       float64       `env:"COMMAND_RATE" default:"2"`
	CommandBurst      int           `env:"COMMAND_BURST" default:"5"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// Load reads the optional .env file, binds the environment and validates
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS)
	}
	if c.MQTTTopicControl == "" {
		return errors.New("MQTT_TOPIC_CONTROL is required")
	}

	switch c.HistoryDriver {
	case HistoryClickHouse:
		if c.ClickHouseAddr == "" {
			return errors.New("CLICKHOUSE_ADDR is required for the clickhouse history driver")
		}
	case HistoryPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres history driver")
		}
	case HistoryNone:
		if c.RecordReadings {
			return errors.New("RECORD_READINGS requires a history driver")
		}
	default:
		return fmt.Errorf("unknown HISTORY_DRIVER %q", c.HistoryDriver)
	}

	positive := map[string]int{
		"HTTP_PORT":           c.HTTPPort,
		"VIEWER_BUFFER":       c.ViewerBuffer,
		"INGEST_BUFFER":       c.IngestBuffer,
		"REPORT_DEFAULT_ROWS": c.ReportDefaultRows,
		"REPORT_MAX_ROWS":     c.ReportMaxRows,
		"COMMAND_BURST":       c.CommandBurst,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.ReportDefaultRows > c.ReportMaxRows {
		return errors.New("REPORT_DEFAULT_ROWS must not exceed REPORT_MAX_ROWS")
	}
	if c.CommandRate <= 0 {
		return fmt.Errorf("COMMAND_RATE must be positive, got %g", c.CommandRate)
	}
	return nil
}

// SensorTopics maps every sensor channel id to its configured topic
func (c *Config) SensorTopics() map[string]string {
	return map[string]string{
		models.ChannelTDS:            c.MQTTTopicTDS,
		models.ChannelTemperature:    c.MQTTTopicTemperature,
		models.ChannelHumidity:       c.MQTTTopicHumidity,
		models.ChannelRain:           c.MQTTTopicRain,
		models.ChannelLight:          c.MQTTTopicLight,
		models.ChannelAirTemperature: c.MQTTTopicAirTemperature,
	}
}

// ListenAddr is the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
