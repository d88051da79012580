package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-bridge/internal/history"
)

func startRecorder(t *testing.T, cfg RecorderServiceConfig) (*RecorderService, *history.Memory, clockwork.FakeClock, context.CancelFunc, *sync.WaitGroup) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := history.NewMemory(100)
	svc := NewRecorderService(store, clock, cfg, discardLog)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Start(ctx)
	}()
	return svc, store, clock, cancel, &wg
}

func windowLen(t *testing.T, store *history.Memory, channel string) int {
	t.Helper()
	rows, err := store.FetchWindow(context.Background(), channel, 100)
	require.NoError(t, err)
	return len(rows)
}

func TestRecorder_FlushesFullBatch(t *testing.T) {
	svc, store, _, cancel, wg := startRecorder(t, RecorderServiceConfig{BatchSize: 2, FlushInterval: time.Hour})
	defer func() { cancel(); wg.Wait() }()

	svc.Records <- history.Record{Channel: "tds", Raw: "1", Value: 1}
	svc.Records <- history.Record{Channel: "tds", Raw: "2", Value: 2}

	assert.Eventually(t, func() bool { return windowLen(t, store, "tds") == 2 }, time.Second, 5*time.Millisecond)
}

func TestRecorder_FlushesOnTick(t *testing.T) {
	svc, store, clock, cancel, wg := startRecorder(t, RecorderServiceConfig{BatchSize: 50, FlushInterval: 5 * time.Second})
	defer func() { cancel(); wg.Wait() }()

	svc.Records <- history.Record{Channel: "rain", Raw: "7", Value: 7}

	assert.Never(t, func() bool { return windowLen(t, store, "rain") > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool { return windowLen(t, store, "rain") == 1 }, time.Second, 5*time.Millisecond)
}

func TestRecorder_FlushesPendingOnShutdown(t *testing.T) {
	svc, store, _, cancel, wg := startRecorder(t, RecorderServiceConfig{BatchSize: 50, FlushInterval: time.Hour})

	svc.Records <- history.Record{Channel: "light", Raw: "9", Value: 9}
	assert.Eventually(t, func() bool { return len(svc.Records) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	assert.Equal(t, 1, windowLen(t, store, "light"))
}
