package flightpub

import (
	"context"
	"fmt"
	"sync"

	"github.com/23skdu/longbow-fletcher/internal/arrowio"
)

// Mock is an in-memory Publisher for tests.
type Mock struct {
	mu        sync.RWMutex
	connected bool
	published map[string][]arrowio.Row
	order     []string
}

func NewMock() *Mock {
	return &Mock{published: make(map[string][]arrowio.Row)}
}

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *Mock) PublishComponent(ctx context.Context, path string, rows []arrowio.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("client not connected")
	}
	m.published[path] = rows
	m.order = append(m.order, path)
	return nil
}

// Published returns the rows stored under path.
func (m *Mock) Published(path string) ([]arrowio.Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.published[path]
	return rows, ok
}

// Order returns component paths in publish order.
func (m *Mock) Order() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = make(map[string][]arrowio.Row)
	m.order = nil
}
