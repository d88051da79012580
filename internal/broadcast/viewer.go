package broadcast

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeDeadline = 5 * time.Second

// Conn is the duplex connection to one viewer. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DeliveryError describes a failed relay to one viewer
type DeliveryError struct {
	ViewerID uuid.UUID
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("viewer %s: delivery failed: %v", e.ViewerID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Viewer is the handle returned by Register
type Viewer struct {
	ID uuid.UUID

	conn     Conn
	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newViewer(conn Conn, buffer int) *Viewer {
	return &Viewer{
		ID:     uuid.New(),
		conn:   conn,
		sendCh: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// run writes queued messages in order until stopped or a write fails.
// onFailure is called from this goroutine, never while a lock is held.
// Messages still queued when the viewer is stopped are discarded, and a
// write that fails because the viewer was stopped is not a failure.
func (v *Viewer) run(onFailure func(*Viewer, error)) {
	defer v.wg.Done()
	for {
		select {
		case msg := <-v.sendCh:
			if v.stopped() {
				return
			}
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !v.stopped() {
					onFailure(v, err)
				}
				return
			}
		case <-v.done:
			return
		}
	}
}

func (v *Viewer) stopped() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// enqueue never blocks; false means the queue is full or the viewer stopped
func (v *Viewer) enqueue(msg []byte) bool {
	if v.stopped() {
		return false
	}
	select {
	case v.sendCh <- msg:
		return true
	default:
		return false
	}
}

// Done is closed once the viewer has been unregistered
func (v *Viewer) Done() <-chan struct{} {
	return v.done
}

func (v *Viewer) stop() {
	v.stopOnce.Do(func() {
		close(v.done)
		_ = v.conn.Close()
	})
}
