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
	"telemetry-bridge/internal/models"
	"telemetry-bridge/internal/snapshot"
)

func newBridge(t *testing.T, records chan history.Record) (*BridgeService, *snapshot.Cache, *fakeRelay, *countingRecorder, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cache := snapshot.NewForSensors(clock)
	relay := &fakeRelay{}
	rec := newCountingRecorder()
	var out chan<- history.Record
	if records != nil {
		out = records
	}
	return NewBridgeService(cache, relay, out, rec, BridgeServiceConfig{EventChannelSize: 8}, discardLog), cache, relay, rec, clock
}

func TestBridge_AcceptedReadingFlowsEverywhere(t *testing.T) {
	records := make(chan history.Record, 1)
	bridge, cache, relay, rec, clock := newBridge(t, records)

	bridge.Process(models.SensorEvent{Channel: models.ChannelTDS, RawValue: "412"})

	got, ok := cache.Get(models.ChannelTDS)
	require.True(t, ok)
	assert.Equal(t, 412.0, got.Value)
	assert.Equal(t, clock.Now(), got.ObservedAt)

	assert.Equal(t, []relayed{{models.ChannelTDS, "412"}}, relay.messages())
	assert.Equal(t, 1, rec.get("accepted:tds"))

	r := <-records
	assert.Equal(t, history.Record{Channel: "tds", Raw: "412", Value: 412, ObservedAt: clock.Now()}, r)
}

func TestBridge_UnparseablePayloadIsRelayedButNotStored(t *testing.T) {
	records := make(chan history.Record, 2)
	bridge, cache, relay, rec, _ := newBridge(t, records)

	bridge.Process(models.SensorEvent{Channel: models.ChannelHumidity, RawValue: "55"})
	bridge.Process(models.SensorEvent{Channel: models.ChannelHumidity, RawValue: "n/a"})

	got, ok := cache.Get(models.ChannelHumidity)
	require.True(t, ok)
	assert.Equal(t, 55.0, got.Value, "previous reading must survive a bad payload")
	assert.Equal(t, []relayed{
		{models.ChannelHumidity, "55"},
		{models.ChannelHumidity, "n/a"},
	}, relay.messages(), "every bus message reaches viewers")
	assert.Equal(t, 1, rec.get("accepted:humidity"))
	assert.Equal(t, 1, rec.get("rejected:humidity"))
	assert.Len(t, records, 1)
}

// rewindClock lets a test stamp a delivery earlier than the one before it
type rewindClock struct {
	clockwork.Clock
	now time.Time
}

func (c *rewindClock) Now() time.Time { return c.now }

func TestBridge_SupersededReadingIsRelayedButNotRecorded(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &rewindClock{Clock: clockwork.NewFakeClock(), now: base}
	cache := snapshot.NewForSensors(clock)
	relay := &fakeRelay{}
	counts := newCountingRecorder()
	records := make(chan history.Record, 2)
	bridge := NewBridgeService(cache, relay, records, counts, BridgeServiceConfig{EventChannelSize: 4}, discardLog)

	bridge.Process(models.SensorEvent{Channel: models.ChannelTDS, RawValue: "300"})
	clock.now = base.Add(-time.Second)
	bridge.Process(models.SensorEvent{Channel: models.ChannelTDS, RawValue: "999"})

	assert.Len(t, relay.messages(), 2)
	require.Len(t, records, 1)
	assert.Equal(t, "300", (<-records).Raw)
	assert.Equal(t, 1, counts.get("accepted:tds"))
	assert.Zero(t, counts.get("rejected:tds"))

	got, _ := cache.Get(models.ChannelTDS)
	assert.Equal(t, 300.0, got.Value)
}

func TestBridge_UnknownChannelIsNotStored(t *testing.T) {
	bridge, _, relay, rec, _ := newBridge(t, nil)

	bridge.Process(models.SensorEvent{Channel: models.ChannelPump, RawValue: "1"})

	// The hub decides which channels viewers see; the bridge forwards as is.
	assert.Len(t, relay.messages(), 1)
	assert.Equal(t, 1, rec.get("rejected:pump"))
}

func TestBridge_FullRecorderQueueDoesNotBlock(t *testing.T) {
	records := make(chan history.Record)
	bridge, _, relay, _, _ := newBridge(t, records)

	done := make(chan struct{})
	go func() {
		bridge.Process(models.SensorEvent{Channel: models.ChannelRain, RawValue: "3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Process blocked on the recorder queue")
	}
	assert.Len(t, relay.messages(), 1)
}

func TestBridge_StartProcessesUntilCancelled(t *testing.T) {
	bridge, cache, _, _, _ := newBridge(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.Start(ctx)
	}()

	bridge.Events <- models.SensorEvent{Channel: models.ChannelLight, RawValue: "12000"}
	bridge.Events <- models.SensorEvent{Channel: models.ChannelLight, RawValue: "13000"}

	assert.Eventually(t, func() bool {
		r, ok := cache.Get(models.ChannelLight)
		return ok && r.Value == 13000
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestBridge_StartStopsWhenEventsClosed(t *testing.T) {
	bridge, _, _, _, _ := newBridge(t, nil)
	close(bridge.Events)

	done := make(chan struct{})
	go func() {
		bridge.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Events was closed")
	}
}
