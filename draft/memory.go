package draft

import (
	"context"
	"slices"
	"sync"
	"time"
)

type session struct {
	urls    []string
	touched time.Time
}

// Memory is an in-process Tracker. Pending uploads are lost on restart.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewMemory returns an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (m *Memory) Add(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		s = &session{}
		m.sessions[id] = s
	}
	if !slices.Contains(s.urls, url) {
		s.urls = append(s.urls, url)
	}
	s.touched = m.now()
	return nil
}

func (m *Memory) Remove(_ context.Context, id, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	i := slices.Index(s.urls, url)
	if i < 0 {
		return false, nil
	}
	s.urls = slices.Delete(s.urls, i, i+1)
	s.touched = m.now()
	return true, nil
}

func (m *Memory) Pending(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return slices.Clone(s.urls), nil
}

func (m *Memory) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Stale(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, s := range m.sessions {
		if s.touched.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
