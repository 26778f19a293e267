package publisher

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nevian427/yasmdr/internal/model"
)

// Published - что ушло в брокер: топик и запись, разобранная обратно из JSON.
type Published struct {
	Topic   string
	Record  model.CallRecord
	Payload []byte
}

// MockPublisher вместо брокера, для тестов. Fail, если задан,
// решает по топику, отказать ли в публикации.
type MockPublisher struct {
	Fail func(topic string) error

	mu     sync.Mutex
	sent   []Published
	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	if m.Fail != nil {
		if err := m.Fail(topic); err != nil {
			return err
		}
	}
	p := Published{Topic: topic, Payload: append([]byte(nil), payload...)}
	// не наш JSON - оставляем пустую запись, сырые байты всё равно есть
	_ = json.Unmarshal(payload, &p.Record)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPublisher) Sent() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.sent...)
}

// Records - только записи, в порядке публикации.
func (m *MockPublisher) Records() []model.CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := make([]model.CallRecord, 0, len(m.sent))
	for _, p := range m.sent {
		recs = append(recs, p.Record)
	}
	return recs
}

func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
