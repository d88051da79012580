package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/snapshot"
	"telemetry-bridge/internal/stats"
	"telemetry-bridge/internal/threshold"
)

// ErrUnknownChannel is returned for channel ids that are not sensors
var ErrUnknownChannel = errors.New("unknown sensor channel")

// Report outcomes
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// ChannelStatus is the latest reading of one channel with its band.
// Reading is nil and Band empty when no data has arrived yet.
type ChannelStatus struct {
	Channel   string          `json:"channel"`
	Unit      string          `json:"unit"`
	Reading   *models.Reading `json:"reading"`
	Band      threshold.Band  `json:"band,omitempty"`
	BandLabel string          `json:"band_label,omitempty"`
}

// ChannelReport is the windowed statistics for one channel
type ChannelReport struct {
	Channel       string         `json:"channel"`
	Unit          string         `json:"unit"`
	RequestedRows int            `json:"requested_rows"`
	FetchedRows   int            `json:"fetched_rows"`
	Metrics       stats.Report   `json:"metrics"`
	AverageBand   threshold.Band `json:"average_band"`
	Latest        ChannelStatus  `json:"latest"`
}

// ReportService answers query-path requests from the snapshot and the
// history store
type ReportService struct {
	cache       *snapshot.Cache
	store       history.Store
	clock       clockwork.Clock
	metrics     ReportRecorder
	log         *slog.Logger
	defaultRows int
	maxRows     int
}

// ReportServiceConfig holds configuration for report service
type ReportServiceConfig struct {
	DefaultRows int
	MaxRows     int
}

// DefaultReportServiceConfig returns default configuration
func DefaultReportServiceConfig() ReportServiceConfig {
	return ReportServiceConfig{DefaultRows: 100, MaxRows: 10000}
}

// NewReportService creates a new report service
func NewReportService(
	cache *snapshot.Cache,
	store history.Store,
	clock clockwork.Clock,
	metrics ReportRecorder,
	config ReportServiceConfig,
	log *slog.Logger,
) *ReportService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	def := DefaultReportServiceConfig()
	if config.DefaultRows <= 0 {
		config.DefaultRows = def.DefaultRows
	}
	if config.MaxRows <= 0 {
		config.MaxRows = def.MaxRows
	}
	return &ReportService{
		cache:       cache,
		store:       store,
		clock:       clock,
		metrics:     metrics,
		log:         log.With("component", "reports"),
		defaultRows: config.DefaultRows,
		maxRows:     config.MaxRows,
	}
}

func sensorChannel(id string) (models.Channel, error) {
	ch, ok := models.LookupChannel(id)
	if !ok || !ch.IsSensor() {
		return models.Channel{}, fmt.Errorf("%w: %q", ErrUnknownChannel, id)
	}
	return ch, nil
}

// Latest returns the current reading of one sensor channel
func (s *ReportService) Latest(channel string) (ChannelStatus, error) {
	ch, err := sensorChannel(channel)
	if err != nil {
		return ChannelStatus{}, err
	}
	return s.status(ch), nil
}

// Status returns every sensor channel in registry order
func (s *ReportService) Status() []ChannelStatus {
	sensors := models.SensorChannels()
	out := make([]ChannelStatus, 0, len(sensors))
	for _, ch := range sensors {
		out = append(out, s.status(ch))
	}
	return out
}

func (s *ReportService) status(ch models.Channel) ChannelStatus {
	st := ChannelStatus{Channel: ch.ID, Unit: ch.Unit}
	if r, ok := s.cache.Get(ch.ID); ok {
		band := threshold.Classify(ch.ID, r.Value)
		st.Reading = &r
		st.Band = band
		st.BandLabel = band.Label(ch.ID)
	}
	return st
}

// Rows resolves a requested window length: non-positive means the default,
// anything above the maximum is capped.
func (s *ReportService) Rows(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultRows
	case requested > s.maxRows:
		return s.maxRows
	}
	return requested
}

// Report fetches up to rows historical values of channel and computes the
// window statistics. A window with no usable values fails with
// stats.ErrEmptyWindow; a store failure with history.ErrUnavailable.
func (s *ReportService) Report(ctx context.Context, channel string, rows int) (ChannelReport, error) {
	ch, err := sensorChannel(channel)
	if err != nil {
		s.metrics.ReportServed(OutcomeError)
		return ChannelReport{}, err
	}
	rows = s.Rows(rows)

	start := s.clock.Now()
	samples, err := s.store.FetchWindow(ctx, ch.ID, rows)
	s.metrics.HistoryFetched(s.clock.Since(start))
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, history.ErrUnavailable) {
			outcome = OutcomeUnavailable
		}
		s.metrics.ReportServed(outcome)
		s.log.Warn("History fetch failed", "channel", ch.ID, "rows", rows, "error", err)
		return ChannelReport{}, fmt.Errorf("fetch %s window: %w", ch.ID, err)
	}

	metrics, err := stats.ComputeSamples(samples)
	if err != nil {
		s.metrics.ReportServed(OutcomeEmpty)
		return ChannelReport{}, fmt.Errorf("report %s: %w", ch.ID, err)
	}
	s.metrics.ReportServed(OutcomeOK)

	return ChannelReport{
		Channel:       ch.ID,
		Unit:          ch.Unit,
		RequestedRows: rows,
		FetchedRows:   len(samples),
		Metrics:       metrics,
		AverageBand:   threshold.Classify(ch.ID, metrics.Average),
		Latest:        s.status(ch),
	}, nil
}
