package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"telemetry-bridge/internal/models"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type relayed struct {
	channel string
	raw     string
}

type fakeRelay struct {
	mu  sync.Mutex
	got []relayed
}

func (r *fakeRelay) OnMessage(channel, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, relayed{channel, raw})
}

func (r *fakeRelay) messages() []relayed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]relayed(nil), r.got...)
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, payload string) <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	ch := make(chan error, 1)
	ch <- p.err
	return ch
}

func (p *fakePublisher) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.payloads...)
}

type fakeStore struct {
	samples []models.Sample
	err     error
	gotRows int
}

func (s *fakeStore) FetchWindow(_ context.Context, _ string, maxRows int) ([]models.Sample, error) {
	s.gotRows = maxRows
	if s.err != nil {
		return nil, s.err
	}
	if len(s.samples) > maxRows {
		return s.samples[len(s.samples)-maxRows:], nil
	}
	return s.samples, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (c *countingRecorder) inc(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
}

func (c *countingRecorder) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func (c *countingRecorder) ReadingAccepted(ch string) { c.inc("accepted:" + ch) }
func (c *countingRecorder) ReadingRejected(ch string) { c.inc("rejected:" + ch) }
func (c *countingRecorder) CommandPublished(ch string) { c.inc("published:" + ch) }
func (c *countingRecorder) CommandFailed(ch, stage string) { c.inc("failed:" + ch + ":" + stage) }
func (c *countingRecorder) ReportServed(outcome string) { c.inc("report:" + outcome) }
func (c *countingRecorder) HistoryFetched(time.Duration) { c.inc("fetched") }
