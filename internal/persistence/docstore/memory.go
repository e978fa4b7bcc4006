package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Bodies are copied on the way in and out.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Record
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]Record{}, now: time.Now}
}

func (m *Memory) stamp(id string, body []byte) Record {
	return Record{
		ID:        id,
		Version:   uuid.NewString(),
		Body:      append([]byte(nil), body...),
		UpdatedAt: m.now().UTC(),
	}
}

func cloneRecord(r Record) Record {
	r.Body = append([]byte(nil), r.Body...)
	return r
}

func (m *Memory) Create(_ context.Context, id string, body []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; ok {
		return Record{}, ErrExists
	}
	rec := m.stamp(id, body)
	m.docs[id] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) CompareAndSwap(_ context.Context, id, prev string, body []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if cur.Version != prev {
		return Record{}, ErrVersionMismatch
	}
	rec := m.stamp(id, body)
	m.docs[id] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) Put(_ context.Context, id string, body []byte) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return Record{}, ErrNotFound
	}
	rec := m.stamp(id, body)
	m.docs[id] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for id := range m.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
