package history

import (
	"context"
	"sync"

	"telemetry-bridge/internal/models"
)

// Memory keeps the last capacity records per channel in process memory.
// Contents are lost on restart.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	rows     map[string][]models.Sample
	commands []CommandRecord
}

// NewMemory creates an in-memory store holding up to capacity rows per channel
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{
		capacity: capacity,
		rows:     make(map[string][]models.Sample),
	}
}

func (m *Memory) FetchWindow(ctx context.Context, channel string, maxRows int) ([]models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		return []models.Sample{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.rows[channel]
	if len(rows) > maxRows {
		rows = rows[len(rows)-maxRows:]
	}
	out := make([]models.Sample, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *Memory) AppendReadings(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		rows := append(m.rows[r.Channel], models.Sample{Timestamp: r.ObservedAt, Value: r.Value})
		if len(rows) > m.capacity {
			rows = rows[len(rows)-m.capacity:]
		}
		m.rows[r.Channel] = rows
	}
	return nil
}

func (m *Memory) AppendCommand(ctx context.Context, rec CommandRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands = append(m.commands, rec)
	if len(m.commands) > m.capacity {
		m.commands = m.commands[len(m.commands)-m.capacity:]
	}
	return nil
}

// Commands returns the logged commands, oldest first
func (m *Memory) Commands() []CommandRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CommandRecord(nil), m.commands...)
}
