package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/command"
	"telemetry-bridge/internal/history"
	"telemetry-bridge/internal/models"
)

// Publisher sends one encoded command to the control topic. The returned
// channel yields the broker outcome exactly once.
type Publisher interface {
	Publish(ctx context.Context, payload string) <-chan error
}

// ErrInvalidCommand wraps every encoding failure so callers can tell a bad
// command from a bus failure
var ErrInvalidCommand = errors.New("invalid command")

// Dispatch stages
const (
	StageEncode  = "encode"
	StagePublish = "publish"
)

// Dispatch is the outcome of one published command
type Dispatch struct {
	Command models.Command `json:"command"`
	Payload string         `json:"payload"`
}

// DispatchService turns operator commands into bus messages
type DispatchService struct {
	publisher Publisher
	audit     history.Writer
	clock     clockwork.Clock
	metrics   CommandRecorder
	timeout   time.Duration
	log       *slog.Logger
}

// NewDispatchService creates a new dispatch service. audit may be nil.
func NewDispatchService(
	publisher Publisher,
	audit history.Writer,
	clock clockwork.Clock,
	metrics CommandRecorder,
	timeout time.Duration,
	log *slog.Logger,
) *DispatchService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DispatchService{
		publisher: publisher,
		audit:     audit,
		clock:     clock,
		metrics:   metrics,
		timeout:   timeout,
		log:       log.With("component", "dispatch"),
	}
}

// Dispatch encodes cmd and publishes it, waiting for the broker at most
// the configured timeout. Encoding errors are returned before anything is
// sent. source names the front end the command came from.
func (s *DispatchService) Dispatch(ctx context.Context, cmd models.Command, source string) (Dispatch, error) {
	payload, err := command.Encode(cmd)
	if err != nil {
		s.metrics.CommandFailed(cmd.Channel, StageEncode)
		return Dispatch{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	issued := s.clock.Now()
	err = <-s.publisher.Publish(ctx, payload)
	s.logCommand(cmd, payload, source, issued, err)
	if err != nil {
		s.metrics.CommandFailed(cmd.Channel, StagePublish)
		s.log.Error("Failed to publish command", "channel", cmd.Channel, "payload", payload, "error", err)
		return Dispatch{}, err
	}

	s.metrics.CommandPublished(cmd.Channel)
	s.log.Info("Published command", "channel", cmd.Channel, "payload", payload, "source", source)
	return Dispatch{Command: cmd, Payload: payload}, nil
}

func (s *DispatchService) logCommand(cmd models.Command, payload, source string, issued time.Time, pubErr error) {
	if s.audit == nil {
		return
	}
	rec := history.CommandRecord{
		Channel:  cmd.Channel,
		Action:   cmd.Action,
		Payload:  payload,
		Source:   source,
		IssuedAt: issued,
	}
	if pubErr != nil {
		rec.Err = pubErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.audit.AppendCommand(ctx, rec); err != nil {
		s.log.Warn("Failed to log command", "channel", cmd.Channel, "error", err)
	}
}
