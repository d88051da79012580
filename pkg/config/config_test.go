package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-bridge/internal/models"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "/topic/qos0", cfg.MQTTTopicControl)
	assert.Equal(t, HistoryClickHouse, cfg.HistoryDriver)
	assert.Equal(t, 100, cfg.ReportDefaultRows)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.True(t, cfg.RecordReadings)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MQTT_BROKER", "mqtts://broker.example:8883")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("MQTT_TOPIC_TDS", "farm/tds")
	t.Setenv("HISTORY_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/telemetry")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mqtts://broker.example:8883", cfg.MQTTBroker)
	assert.Equal(t, 1, cfg.MQTTQoS)
	assert.Equal(t, "farm/tds", cfg.SensorTopics()[models.ChannelTDS])
	assert.Equal(t, HistoryPostgres, cfg.HistoryDriver)
	assert.Equal(t, ":9090", cfg.ListenAddr())
}

func TestLoad_InvalidQoS(t *testing.T) {
	t.Setenv("MQTT_QOS", "3")

	_, err := Load()
	assert.ErrorContains(t, err, "MQTT_QOS")
}

func validConfig() Config {
	return Config{
		MQTTBroker:        "tcp://localhost:1883",
		MQTTTopicControl:  "/topic/qos0",
		HTTPPort:          8080,
		HistoryDriver:     HistoryClickHouse,
		ClickHouseAddr:    "localhost:9000",
		ViewerBuffer:      16,
		IngestBuffer:      16,
		ReportDefaultRows: 100,
		ReportMaxRows:     1000,
		CommandRate:       1,
		CommandBurst:      1,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.HistoryDriver = "sheets" }, "HISTORY_DRIVER"},
		{"postgres without url", func(c *Config) { c.HistoryDriver = HistoryPostgres }, "DATABASE_URL"},
		{"record without store", func(c *Config) { c.HistoryDriver = HistoryNone; c.RecordReadings = true }, "RECORD_READINGS"},
		{"none without recording", func(c *Config) { c.HistoryDriver = HistoryNone }, ""},
		{"zero viewer buffer", func(c *Config) { c.ViewerBuffer = 0 }, "VIEWER_BUFFER"},
		{"default above max", func(c *Config) { c.ReportDefaultRows = 5000 }, "REPORT_DEFAULT_ROWS"},
		{"zero rate", func(c *Config) { c.CommandRate = 0 }, "COMMAND_RATE"},
		{"missing control topic", func(c *Config) { c.MQTTTopicControl = "" }, "MQTT_TOPIC_CONTROL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestSensorTopics_CoversEverySensor(t *testing.T) {
	cfg := validConfig()
	topics := cfg.SensorTopics()
	for _, ch := range models.SensorChannels() {
		_, ok := topics[ch.ID]
		assert.True(t, ok, ch.ID)
	}
}
