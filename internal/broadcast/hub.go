package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"telemetry-bridge/internal/models"
)

// ErrQueueFull is the cause recorded when a viewer falls too far behind
var ErrQueueFull = errors.New("viewer queue full")

// ErrHubClosed is returned by Register after Close
var ErrHubClosed = errors.New("hub closed")

// Recorder receives hub events for instrumentation. All methods must be
// safe for concurrent use.
type Recorder interface {
	ViewerRegistered()
	ViewerUnregistered()
	MessageRelayed(channel string, viewers int)
	DeliveryFailed(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ViewerRegistered() {}
func (nopRecorder) ViewerUnregistered() {}
func (nopRecorder) MessageRelayed(string, int) {}
func (nopRecorder) DeliveryFailed(string) {}

// Config holds hub settings
type Config struct {
	// ViewerBuffer is how many messages may queue per viewer before it is
	// treated as failed
	ViewerBuffer int
	// Channels limits relaying to these channel ids; empty means every
	// sensor channel in the registry
	Channels []string
}

// DefaultConfig returns the default hub configuration
func DefaultConfig() Config {
	return Config{ViewerBuffer: 256}
}

// Hub fans sensor messages out to every registered viewer
type Hub struct {
	log      *slog.Logger
	recorder Recorder
	buffer   int
	relayed  map[string]struct{}

	mu      sync.RWMutex
	viewers map[uuid.UUID]*Viewer
	closed  bool
}

// NewHub creates a hub. recorder may be nil.
func NewHub(cfg Config, recorder Recorder, log *slog.Logger) *Hub {
	if cfg.ViewerBuffer <= 0 {
		cfg.ViewerBuffer = DefaultConfig().ViewerBuffer
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}

	relayed := make(map[string]struct{})
	if len(cfg.Channels) == 0 {
		for _, ch := range models.SensorChannels() {
			relayed[ch.ID] = struct{}{}
		}
	} else {
		for _, id := range cfg.Channels {
			if ch, ok := models.LookupChannel(id); ok && ch.IsSensor() {
				relayed[id] = struct{}{}
			}
		}
	}

	return &Hub{
		log:      log.With("component", "broadcast"),
		recorder: recorder,
		buffer:   cfg.ViewerBuffer,
		relayed:  relayed,
		viewers:  make(map[uuid.UUID]*Viewer),
	}
}

// Register adds a viewer and starts its writer
func (h *Hub) Register(conn Conn) (*Viewer, error) {
	v := newViewer(conn, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil, ErrHubClosed
	}
	h.viewers[v.ID] = v
	// Counted before Close can see the viewer and wait on it
	v.wg.Add(1)
	total := len(h.viewers)
	h.mu.Unlock()

	go v.run(h.fail)

	h.recorder.ViewerRegistered()
	h.log.Info("Viewer registered", "viewer_id", v.ID, "viewers", total)
	return v, nil
}

// Unregister removes the viewer and closes its connection. Unknown or
// already removed ids are ignored.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	total := len(h.viewers)
	h.mu.Unlock()

	if !ok {
		return
	}
	v.stop()
	h.recorder.ViewerUnregistered()
	h.log.Info("Viewer unregistered", "viewer_id", id, "viewers", total)
}

func (h *Hub) fail(v *Viewer, err error) {
	delivery := &DeliveryError{ViewerID: v.ID, Err: err}
	reason := "write"
	if errors.Is(err, ErrQueueFull) {
		reason = "queue_full"
	}
	h.recorder.DeliveryFailed(reason)
	h.log.Warn("Dropping viewer", "viewer_id", v.ID, "error", delivery)
	h.Unregister(v.ID)
}

// OnMessage relays one bus message to every viewer. Channels outside the
// relayed sensor set are ignored. It never blocks on a viewer.
func (h *Hub) OnMessage(channel, rawValue string) {
	if _, ok := h.relayed[channel]; !ok {
		return
	}

	data, err := json.Marshal(models.FeedMessage{Channel: channel, RawValue: rawValue})
	if err != nil {
		h.log.Error("Failed to marshal feed message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		targets = append(targets, v)
	}
	h.mu.RUnlock()

	for _, v := range targets {
		if !v.enqueue(data) && !v.stopped() {
			h.fail(v, ErrQueueFull)
		}
	}
	h.recorder.MessageRelayed(channel, len(targets))
}

// Count returns the number of registered viewers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Close unregisters every viewer and rejects new registrations
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	viewers := h.viewers
	h.viewers = make(map[uuid.UUID]*Viewer)
	h.mu.Unlock()

	for _, v := range viewers {
		v.stop()
		v.wg.Wait()
		h.recorder.ViewerUnregistered()
	}
	h.log.Info("Hub closed", "viewers", len(viewers))
}
