package session

import (
	"context"
	"sync"
	"time"

	"uploader/internal/selection"
)

var _ Store = (*MemoryStore)(nil)

// memoryEntry fields are guarded by MemoryStore.mu; update serialises Update
// calls on one session without blocking readers or other sessions.
type memoryEntry struct {
	update  sync.Mutex
	form    *selection.Form
	expires time.Time
}

// MemoryStore holds sessions in process. Updates of one session run one at a
// time and therefore never conflict.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	s.sessions[id] = &memoryEntry{form: selection.New(), expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*selection.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.form.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*selection.Form) error) error {
	s.mu.Lock()
	entry, err := s.lookup(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	entry.update.Lock()
	defer entry.update.Unlock()

	s.mu.Lock()
	form := entry.form.Clone()
	s.mu.Unlock()

	if err := fn(form); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] != entry {
		// deleted while fn ran
		return ErrNotFound
	}
	entry.form = form
	entry.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	delete(s.sessions, id)
	return nil
}

// lookup must be called with mu held. Expired sessions are dropped on access.
func (s *MemoryStore) lookup(id string) (*memoryEntry, error) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expires) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return entry, nil
}
