package services

import (
	"context"
	"errors"
	"log/slog"

	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/snapshot"
)

// Relay fans an accepted sensor message out to live viewers
type Relay interface {
	OnMessage(channel, rawValue string)
}

// BridgeService moves bus events into the snapshot, the live feed and
// optionally the reading log
type BridgeService struct {
	cache   *snapshot.Cache
	relay   Relay
	metrics IngestRecorder
	log     *slog.Logger

	// Input channel from the MQTT subscriber
	Events chan models.SensorEvent

	// Output channel to the recorder; nil when recording is off
	records chan<- history.Record
}

// BridgeServiceConfig holds configuration for the bridge service
type BridgeServiceConfig struct {
	EventChannelSize int
}

// DefaultBridgeServiceConfig returns default configuration
func DefaultBridgeServiceConfig() BridgeServiceConfig {
	return BridgeServiceConfig{EventChannelSize: 512}
}

// NewBridgeService creates a new bridge service
func NewBridgeService(
	cache *snapshot.Cache,
	relay Relay,
	records chan<- history.Record,
	metrics IngestRecorder,
	config BridgeServiceConfig,
	log *slog.Logger,
) *BridgeService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if config.EventChannelSize <= 0 {
		config.EventChannelSize = DefaultBridgeServiceConfig().EventChannelSize
	}
	return &BridgeService{
		cache:   cache,
		relay:   relay,
		metrics: metrics,
		log:     log.With("component", "bridge"),
		Events:  make(chan models.SensorEvent, config.EventChannelSize),
		records: records,
	}
}

// Start processes sensor events until ctx is cancelled or Events is closed
func (s *BridgeService) Start(ctx context.Context) {
	s.log.Info("Bridge service starting")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Bridge service shutting down")
			return
		case event, ok := <-s.Events:
			if !ok {
				s.log.Info("Sensor event channel closed, shutting down")
				return
			}
			s.Process(event)
		}
	}
}

// Process handles one bus event. Viewers get every bus message as raw text,
// parseable or not. Only payloads the snapshot accepted are counted as
// readings and handed to the reading log; a delivery that lost the race to a
// later one is relayed but not logged.
func (s *BridgeService) Process(event models.SensorEvent) {
	reading, err := s.cache.Update(event.Channel, event.RawValue)
	s.relay.OnMessage(event.Channel, event.RawValue)

	var perr *snapshot.ParseError
	switch {
	case errors.Is(err, snapshot.ErrSuperseded):
		s.log.Debug("Sensor reading superseded by a later arrival", "channel", event.Channel, "payload", event.RawValue)
		return
	case errors.As(err, &perr):
		s.metrics.ReadingRejected(event.Channel)
		s.log.Warn("Dropping unparseable sensor payload", "channel", event.Channel, "payload", event.RawValue)
		return
	case err != nil:
		s.metrics.ReadingRejected(event.Channel)
		s.log.Warn("Dropping sensor event", "channel", event.Channel, "error", err)
		return
	}
	s.metrics.ReadingAccepted(event.Channel)

	if s.records == nil {
		return
	}
	rec := history.Record{
		Channel:    reading.Channel,
		Raw:        event.RawValue,
		Value:      reading.Value,
		ObservedAt: reading.ObservedAt,
	}
	select {
	case s.records <- rec:
	default:
		s.log.Warn("Recorder queue full, reading not logged", "channel", event.Channel)
	}
}
