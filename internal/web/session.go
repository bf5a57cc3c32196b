package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"yashubustudio/papersift/papersift"
	"yashubustudio/papersift/selection"
)

// Session holds one uploaded library and the latest processing result.
type Session struct {
	ID       string
	Filename string

	mu       sync.Mutex
	library  *papersift.Library
	encoding *papersift.Encoding
	encKey   string
	result   *selection.Result
	lastUsed time.Time
}

func encodingKey(model, reference string) string {
	return model + "\x00" + reference
}

// SessionStore keeps sessions in memory and forgets them after ttl of inactivity.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]*Session)}
}

// Create registers a new session for an uploaded library.
func (s *SessionStore) Create(filename string, lib *papersift.Library) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		Filename: filename,
		library:  lib,
		lastUsed: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and refreshes its expiry.
func (s *SessionStore) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastUsed = now
	return sess, true
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Janitor sweeps every interval until ctx is done.
func (s *SessionStore) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// expired must be called with s.mu held; lastUsed is only written under it.
func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastUsed) > s.ttl
}
