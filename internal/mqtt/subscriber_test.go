package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-bridge/internal/models"
)

type countingDrops struct {
	mu      sync.Mutex
	dropped []string
}

func (d *countingDrops) EventDropped(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped = append(d.dropped, channel)
}

func (d *countingDrops) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dropped...)
}

func TestSubscriber_ForwardsRawPayload(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClock()
	events := make(chan models.SensorEvent, 4)

	sub := NewSubscriber(bus, SubscriberConfig{
		Topics: map[string]string{
			models.ChannelTDS:      "/topic/tds",
			models.ChannelHumidity: "/topic/humidity",
		},
	}, events, clock, nil, discardLog)
	require.NoError(t, sub.SubscribeAll())

	bus.deliver("/topic/tds", "412")
	bus.deliver("/topic/humidity", " 55.5\n")

	got := <-events
	assert.Equal(t, models.SensorEvent{Channel: models.ChannelTDS, RawValue: "412", ReceivedAt: clock.Now()}, got)

	got = <-events
	assert.Equal(t, models.ChannelHumidity, got.Channel)
	assert.Equal(t, " 55.5\n", got.RawValue)
}

func TestSubscriber_SkipsEmptyTopics(t *testing.T) {
	bus := newFakeBus()
	sub := NewSubscriber(bus, SubscriberConfig{
		Topics: map[string]string{models.ChannelTDS: "/topic/tds", models.ChannelRain: ""},
	}, make(chan models.SensorEvent, 1), clockwork.NewFakeClock(), nil, discardLog)

	require.NoError(t, sub.SubscribeAll())
	assert.Len(t, bus.handlers, 1)
	assert.Contains(t, bus.handlers, "/topic/tds")
}

func TestSubscriber_SubscribeError(t *testing.T) {
	bus := newFakeBus()
	bus.subErr = errors.New("not authorized")
	sub := NewSubscriber(bus, SubscriberConfig{
		Topics: map[string]string{models.ChannelTDS: "/topic/tds"},
	}, make(chan models.SensorEvent, 1), clockwork.NewFakeClock(), nil, discardLog)

	err := sub.SubscribeAll()
	require.Error(t, err)
	assert.ErrorContains(t, err, "tds")
	assert.ErrorContains(t, err, "not authorized")
}

func TestSubscriber_DropsWhenConsumerStalls(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClock()
	drops := &countingDrops{}
	events := make(chan models.SensorEvent, 1)

	sub := NewSubscriber(bus, SubscriberConfig{
		Topics:      map[string]string{models.ChannelTDS: "/topic/tds"},
		SendTimeout: time.Second,
	}, events, clock, drops, discardLog)
	require.NoError(t, sub.SubscribeAll())

	bus.deliver("/topic/tds", "1")

	done := make(chan struct{})
	go func() {
		bus.deliver("/topic/tds", "2")
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not give up after the send timeout")
	}

	assert.Equal(t, []string{models.ChannelTDS}, drops.snapshot())
	assert.Equal(t, "1", (<-events).RawValue)
}
