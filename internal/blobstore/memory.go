package blobstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory. It is volatile and meant
// for tests and throwaway deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string]map[string][]byte
	sets   map[string]map[string]struct{}
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]map[string][]byte),
		sets:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) check(op, namespace, key string) error {
	if m.closed {
		return backendErr(op, namespace, key, errClosed)
	}
	return nil
}

func (m *MemoryStore) Put(_ context.Context, namespace, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("put", namespace, id); err != nil {
		return err
	}
	ns, ok := m.blobs[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.blobs[namespace] = ns
	}
	ns[id] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, namespace, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("get", namespace, id); err != nil {
		return nil, err
	}
	data, ok := m.blobs[namespace][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Exists(_ context.Context, namespace, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("exists", namespace, id); err != nil {
		return false, err
	}
	_, ok := m.blobs[namespace][id]
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, namespace, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", namespace, id); err != nil {
		return false, err
	}
	if _, ok := m.blobs[namespace][id]; !ok {
		return false, nil
	}
	delete(m.blobs[namespace], id)
	return true, nil
}

func (m *MemoryStore) ListIDs(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("list", namespace, ""); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.blobs[namespace]))
	for id := range m.blobs[namespace] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) SetAdd(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("sadd", set, member); err != nil {
		return err
	}
	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{})
		m.sets[set] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *MemoryStore) SetRemove(_ context.Context, set, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("srem", set, member); err != nil {
		return err
	}
	delete(m.sets[set], member)
	return nil
}

func (m *MemoryStore) SetMembers(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("smembers", set, ""); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(m.sets[set]))
	for member := range m.sets[set] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping", "", "")
}

// Close makes every later call fail with a BackendError, which tests use to
// simulate an unreachable backend.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
