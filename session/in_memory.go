package session

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/core"
)

// InMemoryOptions configures the in-memory store.
type InMemoryOptions struct {
	// TTL bounds how long a session survives after its last write. Zero
	// disables expiry.
	TTL time.Duration
	// Clock returns the current time; override in tests.
	Clock func() time.Time
}

// entry is the stored state for one session id. Expiry is evaluated lazily
// on access; there is no background reaper.
type entry struct {
	info      core.SessionInfo
	hasInfo   bool
	turns     []core.Message
	expiresAt time.Time
}

// InMemoryStore is a volatile SessionStore implementation keeping history
// and metadata in a process local map. It is safe for concurrent access and
// best suited for tests or single-process demos. Returned slices are copies
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    InMemoryOptions
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &InMemoryStore{entries: make(map[string]*entry), opts: opts}
}

// AppendTurns implements core.SessionStore.
func (s *InMemoryStore) AppendTurns(ctx context.Context, sessionID string, turns ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveEntryLocked(sessionID)
	e.turns = append(e.turns, turns...)
	s.touchLocked(e)
	return nil
}

// History implements core.SessionStore. Unknown or expired ids read as empty.
func (s *InMemoryStore) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || s.expiredLocked(e) {
		return []core.Message{}, nil
	}
	out := make([]core.Message, len(e.turns))
	copy(out, e.turns)
	return out, nil
}

// PutInfo implements core.SessionStore.
func (s *InMemoryStore) PutInfo(ctx context.Context, info core.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.liveEntryLocked(info.ID)
	e.info = info
	e.hasInfo = true
	s.touchLocked(e)
	return nil
}

// Info implements core.SessionStore.
func (s *InMemoryStore) Info(ctx context.Context, sessionID string) (core.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sessionID]
	if !ok || s.expiredLocked(e) || !e.hasInfo {
		return core.SessionInfo{}, core.ErrSessionNotFound
	}
	return e.info, nil
}

// List implements core.SessionStore.
func (s *InMemoryStore) List(ctx context.Context) ([]core.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]core.SessionInfo, 0, len(s.entries))
	for _, e := range s.entries {
		if e.hasInfo && !s.expiredLocked(e) {
			infos = append(infos, e.info)
		}
	}
	return infos, nil
}

// Delete implements core.SessionStore. Deleting an unknown id is a no-op.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// liveEntryLocked returns the current entry for the id, replacing an expired
// one with a fresh entry so the id silently starts a new history. Caller
// must hold the write lock.
func (s *InMemoryStore) liveEntryLocked(sessionID string) *entry {
	e, ok := s.entries[sessionID]
	if !ok || s.expiredLocked(e) {
		e = &entry{}
		s.entries[sessionID] = e
	}
	return e
}

func (s *InMemoryStore) touchLocked(e *entry) {
	if s.opts.TTL > 0 {
		e.expiresAt = s.opts.Clock().Add(s.opts.TTL)
	}
}

func (s *InMemoryStore) expiredLocked(e *entry) bool {
	return s.opts.TTL > 0 && s.opts.Clock().After(e.expiresAt)
}
