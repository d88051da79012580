// Package history reads and writes the per-channel reading log that reports
// are computed from.
package history

import (
	"context"
	"errors"
	"math"
	"time"

	"telemetry-bridge/internal/models"
)

// ErrUnavailable is returned when the backing store cannot serve a request.
// Callers match it with errors.Is; the wrapped cause is kept for logging.
var ErrUnavailable = errors.New("history unavailable")

// Store serves the most recent rows of one channel, oldest first.
// maxRows <= 0 means no rows.
type Store interface {
	FetchWindow(ctx context.Context, channel string, maxRows int) ([]models.Sample, error)
}

// Record is one row appended to the reading log. Value is NaN when Raw did
// not parse; such rows are kept so reports can count them as unusable.
type Record struct {
	Channel    string
	Raw        string
	Value      float64
	ObservedAt time.Time
}

// Usable reports whether the record carries a numeric value
func (r Record) Usable() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// CommandRecord is one dispatched actuator command
type CommandRecord struct {
	Channel  string
	Action   models.Action
	Payload  string
	Source   string
	IssuedAt time.Time
	Err      string
}

// Writer appends to the reading and command logs
type Writer interface {
	AppendReadings(ctx context.Context, records []Record) error
	AppendCommand(ctx context.Context, rec CommandRecord) error
}

// ReadWriter is a store that is also written to by the recorder
type ReadWriter interface {
	Store
	Writer
}

// Disabled is the store used when no history driver is configured
type Disabled struct{}

func (Disabled) FetchWindow(context.Context, string, int) ([]models.Sample, error) {
	return nil, ErrUnavailable
}

func (Disabled) AppendReadings(context.Context, []Record) error {
	return ErrUnavailable
}

func (Disabled) AppendCommand(context.Context, CommandRecord) error {
	return ErrUnavailable
}
