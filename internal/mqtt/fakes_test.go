package mqtt

import (
	"io"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) complete() { close(t.done) }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool { return false }
func (m fakeMessage) Qos() byte { return 0 }
func (m fakeMessage) Retained() bool { return false }
func (m fakeMessage) Topic() string { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Ack() {}

type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	subErr    error
	published []string
	pubToken  *fakeToken
	connected bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: map[string]mqtt.MessageHandler{}, connected: true}
}

func (b *fakeBus) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subErr == nil {
		b.handlers[topic] = cb
	}
	return newFakeToken(b.subErr, true)
}

func (b *fakeBus) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, topic+" "+payload.(string))
	if b.pubToken != nil {
		return b.pubToken
	}
	return newFakeToken(nil, true)
}

func (b *fakeBus) IsConnected() bool { return b.connected }

func (b *fakeBus) deliver(topic, payload string) {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	h(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}
