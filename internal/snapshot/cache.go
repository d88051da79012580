// Package snapshot holds the latest accepted reading for every sensor channel.
package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/models"
)

// ParseError is returned when a raw bus payload is not a decimal number
type ParseError struct {
	Channel string
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("channel %s: cannot parse %q as a number: %v", e.Channel, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrSuperseded is returned by Update when the slot already holds a reading
// stamped later than the arriving one. The stored reading is left in place.
var ErrSuperseded = errors.New("newer reading already stored")

// UnknownChannelError is returned for channels the cache was not built with
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown channel %q", e.Channel)
}

// slot holds one channel's current reading. Readers see either nil or a
// complete Reading.
type slot struct {
	current atomic.Pointer[models.Reading]
}

// Cache maps channel to its most recent reading.
// The channel set is fixed at construction so the map itself is read-only;
// each slot is updated independently.
type Cache struct {
	clock clockwork.Clock
	slots map[string]*slot
	order []string
}

// New creates a cache for the given channels
func New(clock clockwork.Clock, channels []models.Channel) *Cache {
	c := &Cache{
		clock: clock,
		slots: make(map[string]*slot, len(channels)),
		order: make([]string, 0, len(channels)),
	}
	for _, ch := range channels {
		if _, dup := c.slots[ch.ID]; dup {
			continue
		}
		c.slots[ch.ID] = &slot{}
		c.order = append(c.order, ch.ID)
	}
	return c
}

// NewForSensors creates a cache covering every registered sensor channel
func NewForSensors(clock clockwork.Clock) *Cache {
	return New(clock, models.SensorChannels())
}

// Update parses rawValue and stores it as the channel's latest reading,
// stamped with the arrival time. A payload that does not parse is rejected
// and the previous reading is kept. When a later reading won the race,
// Update returns that reading together with ErrSuperseded.
func (c *Cache) Update(channel, rawValue string) (models.Reading, error) {
	s, ok := c.slots[channel]
	if !ok {
		return models.Reading{}, &UnknownChannelError{Channel: channel}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(rawValue), 64)
	if err != nil {
		return models.Reading{}, &ParseError{Channel: channel, Raw: rawValue, Err: err}
	}

	next := &models.Reading{
		Channel:    channel,
		Value:      value,
		ObservedAt: c.clock.Now(),
	}

	// Last arrival wins: never replace a reading stamped later than ours.
	for {
		prev := s.current.Load()
		if prev != nil && prev.ObservedAt.After(next.ObservedAt) {
			return *prev, ErrSuperseded
		}
		if s.current.CompareAndSwap(prev, next) {
			return *next, nil
		}
	}
}

// Get returns the latest reading for channel, or false when none has arrived
func (c *Cache) Get(channel string) (models.Reading, bool) {
	s, ok := c.slots[channel]
	if !ok {
		return models.Reading{}, false
	}
	r := s.current.Load()
	if r == nil {
		return models.Reading{}, false
	}
	return *r, true
}

// Has reports whether the cache tracks channel
func (c *Cache) Has(channel string) bool {
	_, ok := c.slots[channel]
	return ok
}

// Entry is one channel's state in a Snapshot
type Entry struct {
	Channel string          `json:"channel"`
	Reading *models.Reading `json:"reading"`
}

// Snapshot returns every tracked channel in registration order. Channels
// without data carry a nil Reading.
func (c *Cache) Snapshot() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		e := Entry{Channel: id}
		if r := c.slots[id].current.Load(); r != nil {
			cp := *r
			e.Reading = &cp
		}
		out = append(out, e)
	}
	return out
}
