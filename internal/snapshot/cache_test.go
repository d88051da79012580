package snapshot

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-bridge/internal/models"
)

func TestCache_UpdateThenGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewForSensors(clock)

	for _, ch := range models.SensorChannels() {
		r, err := cache.Update(ch.ID, "12.5")
		require.NoError(t, err)
		assert.Equal(t, 12.5, r.Value)

		got, ok := cache.Get(ch.ID)
		require.True(t, ok)
		assert.Equal(t, 12.5, got.Value)
		assert.Equal(t, clock.Now(), got.ObservedAt)
	}
}

func TestCache_SecondUpdateReplaces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewForSensors(clock)

	_, err := cache.Update(models.ChannelTDS, "150")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = cache.Update(models.ChannelTDS, " 420.25 ")
	require.NoError(t, err)

	got, ok := cache.Get(models.ChannelTDS)
	require.True(t, ok)
	assert.Equal(t, 420.25, got.Value)
	assert.Equal(t, models.ChannelTDS, got.Channel)
}

func TestCache_SameInstantUpdateReplaces(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())

	_, err := cache.Update(models.ChannelRain, "1")
	require.NoError(t, err)
	_, err = cache.Update(models.ChannelRain, "2")
	require.NoError(t, err)

	got, _ := cache.Get(models.ChannelRain)
	assert.Equal(t, 2.0, got.Value)
}

func TestCache_ParseFailureKeepsPrevious(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())

	_, err := cache.Update(models.ChannelHumidity, "55")
	require.NoError(t, err)

	_, err = cache.Update(models.ChannelHumidity, "n/a")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, models.ChannelHumidity, parseErr.Channel)
	assert.Equal(t, "n/a", parseErr.Raw)

	got, ok := cache.Get(models.ChannelHumidity)
	require.True(t, ok)
	assert.Equal(t, 55.0, got.Value)
}

// steppedClock returns whatever time the test sets, including earlier ones,
// to model two deliveries whose arrival stamps land out of order.
type steppedClock struct {
	clockwork.Clock
	now time.Time
}

func (c *steppedClock) Now() time.Time { return c.now }

func TestCache_OlderArrivalIsSuperseded(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &steppedClock{Clock: clockwork.NewFakeClock(), now: base}
	cache := NewForSensors(clock)

	_, err := cache.Update(models.ChannelTDS, "300")
	require.NoError(t, err)

	clock.now = base.Add(-time.Second)
	r, err := cache.Update(models.ChannelTDS, "999")
	require.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, 300.0, r.Value)
	assert.Equal(t, base, r.ObservedAt)

	got, ok := cache.Get(models.ChannelTDS)
	require.True(t, ok)
	assert.Equal(t, 300.0, got.Value)
}

func TestCache_EmptyPayloadIsParseError(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())

	_, err := cache.Update(models.ChannelLight, "")
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, ok := cache.Get(models.ChannelLight)
	assert.False(t, ok)
}

func TestCache_UnknownChannel(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())

	_, err := cache.Update(models.ChannelPump, "1")
	var unknown *UnknownChannelError
	assert.ErrorAs(t, err, &unknown)

	_, ok := cache.Get("nope")
	assert.False(t, ok)
}

func TestCache_GetBeforeAnyUpdate(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())

	_, ok := cache.Get(models.ChannelTemperature)
	assert.False(t, ok)
}

func TestCache_Snapshot(t *testing.T) {
	cache := NewForSensors(clockwork.NewFakeClock())
	_, err := cache.Update(models.ChannelTDS, "300")
	require.NoError(t, err)

	entries := cache.Snapshot()
	require.Len(t, entries, 6)
	assert.Equal(t, models.ChannelTDS, entries[0].Channel)
	require.NotNil(t, entries[0].Reading)
	assert.Equal(t, 300.0, entries[0].Reading.Value)
	for _, e := range entries[1:] {
		assert.Nil(t, e.Reading, e.Channel)
	}
}

func TestCache_ConcurrentUpdateAndGet(t *testing.T) {
	cache := NewForSensors(clockwork.NewRealClock())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, _ = cache.Update(models.ChannelTDS, strconv.Itoa(w*1000+i))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if r, ok := cache.Get(models.ChannelTDS); ok {
					assert.Equal(t, models.ChannelTDS, r.Channel)
					assert.False(t, r.ObservedAt.IsZero())
				}
			}
		}()
	}
	wg.Wait()

	_, ok := cache.Get(models.ChannelTDS)
	assert.True(t, ok)
}
