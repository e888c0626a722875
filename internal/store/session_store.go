package store

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"tutor-chat-client/internal/entity"
)

// SessionStore owns the subject→Session map and the current-subject pointer.
// It is the single sanctioned mutation path for session state: the orchestrator
// and timer go through Update, never through a shared pointer, so readers
// never observe a half-written session.
type SessionStore struct {
	mu       sync.Mutex
	sessions *cache.Cache

	currentSubject string

	// At most one attachment is pending at a time (single-file selection);
	// it is snapshotted and cleared atomically on send.
	pendingAttachment *entity.Attachment
}

func NewSessionStore() *SessionStore {
	// Sessions live for the whole process; nothing expires.
	return &SessionStore{
		sessions: cache.New(cache.NoExpiration, 0),
	}
}

// Get returns a copy of the session for subjectId. Mutating the copy has no
// effect on the store.
func (s *SessionStore) Get(subjectId string) (*entity.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(subjectId)
}

func (s *SessionStore) getLocked(subjectId string) (*entity.Session, bool) {
	if x, found := s.sessions.Get(subjectId); found {
		return x.(*entity.Session).Clone(), true
	}
	return nil, false
}

// Ensure creates an empty session record for subjectId if none exists yet and
// returns a copy of the current record.
func (s *SessionStore) Ensure(subjectId string) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, found := s.getLocked(subjectId); found {
		return session
	}
	fresh := &entity.Session{Messages: []entity.ChatMessage{}}
	s.sessions.Set(subjectId, fresh, cache.NoExpiration)
	return fresh.Clone()
}

// Update applies mutate to a private copy of the session and swaps the copy in
// as one atomic replace. A missing record is created first, so partial updates
// never vanish. This is the merge described by the session state contract.
func (s *SessionStore) Update(subjectId string, mutate func(*entity.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.getLocked(subjectId)
	if !found {
		current = &entity.Session{Messages: []entity.ChatMessage{}}
	}
	mutate(current)
	s.sessions.Set(subjectId, current, cache.NoExpiration)
}

func (s *SessionStore) SetCurrentSubject(subjectId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSubject = subjectId
}

func (s *SessionStore) CurrentSubject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSubject
}

func (s *SessionStore) SetPendingAttachment(a *entity.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingAttachment = a
}

func (s *SessionStore) PendingAttachment() *entity.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingAttachment
}

// TakePendingAttachment snapshots and clears the pending attachment in one
// step so a message can never attach the same file twice.
func (s *SessionStore) TakePendingAttachment() *entity.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.pendingAttachment
	s.pendingAttachment = nil
	return a
}

// Reset drops every session, the current-subject pointer, and any pending
// attachment.
func (s *SessionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Flush()
	s.currentSubject = ""
	s.pendingAttachment = nil
}
