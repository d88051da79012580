package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/history"
)

// RecorderService batches accepted readings into the reading log
type RecorderService struct {
	store history.Writer
	clock clockwork.Clock
	log   *slog.Logger

	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration

	// Input channel from the bridge service
	Records chan history.Record
}

// RecorderServiceConfig holds configuration for recorder service
type RecorderServiceConfig struct {
	ChannelSize   int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultRecorderServiceConfig returns default configuration
func DefaultRecorderServiceConfig() RecorderServiceConfig {
	return RecorderServiceConfig{
		ChannelSize:   1024,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		WriteTimeout:  10 * time.Second,
	}
}

// NewRecorderService creates a new recorder service
func NewRecorderService(
	store history.Writer,
	clock clockwork.Clock,
	config RecorderServiceConfig,
	log *slog.Logger,
) *RecorderService {
	def := DefaultRecorderServiceConfig()
	if config.ChannelSize <= 0 {
		config.ChannelSize = def.ChannelSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	return &RecorderService{
		store:         store,
		clock:         clock,
		log:           log.With("component", "recorder"),
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		writeTimeout:  config.WriteTimeout,
		Records:       make(chan history.Record, config.ChannelSize),
	}
}

// Start collects records and writes them when a batch fills or the flush
// interval passes. Pending records are flushed on shutdown.
func (s *RecorderService) Start(ctx context.Context) {
	s.log.Info("Recorder service starting", "batch_size", s.batchSize, "flush_interval", s.flushInterval)

	ticker := s.clock.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]history.Record, 0, s.batchSize)
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background(), batch)
			s.log.Info("Recorder service shut down")
			return
		case rec, ok := <-s.Records:
			if !ok {
				s.flush(context.Background(), batch)
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.Chan():
			s.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

func (s *RecorderService) flush(ctx context.Context, batch []history.Record) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if err := s.store.AppendReadings(ctx, batch); err != nil {
		s.log.Error("Failed to save readings", "count", len(batch), "error", err)
		return
	}
	s.log.Debug("Saved readings", "count", len(batch))
}
