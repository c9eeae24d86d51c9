package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseMatchDraft Phase = "match_draft"
	PhaseGames      Phase = "games"
	PhaseCommitted  Phase = "committed"
)

// Session is a report in progress. Exactly one of Match or Games is set.
type Session struct {
	Key      string
	Reporter Actor
	Match    *MatchDraft
	Games    *GameDraftSequence
}

// Actor identifies who sends an action. Zero fields are unknown and never match.
type Actor struct {
	UserID     string
	TelegramID int64
}

// authorize rejects actions from anyone but the player who opened the session.
func (s *Session) authorize(actor Actor) error {
	if actor.UserID != "" && actor.UserID == s.Reporter.UserID {
		return nil
	}
	if actor.TelegramID != 0 && actor.TelegramID == s.Reporter.TelegramID {
		return nil
	}
	return ErrNotYourReport
}

func (s *Session) Phase() Phase {
	switch {
	case s.Games != nil && s.Games.Committed:
		return PhaseCommitted
	case s.Games != nil:
		return PhaseGames
	default:
		return PhaseMatchDraft
	}
}

type sessionEntry struct {
	mu          sync.Mutex
	session     *Session
	lastTouched time.Time
	committedAt time.Time
	removed     atomic.Bool
}

// SessionStore maps session keys to sessions. Each session has its own lock,
// so work on one session never waits for another.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	idleTimeout time.Duration
	retention   time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewSessionStore(idleTimeout, retention time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		idleTimeout: idleTimeout,
		retention:   retention,
		now:         time.Now,
		logger:      logger.Named("sessions"),
	}
}

// Create registers a new session under key.
func (s *SessionStore) Create(key string, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, key)
	}
	session.Key = key
	s.sessions[key] = &sessionEntry{session: session, lastTouched: s.now()}
	return nil
}

// With runs fn while holding the session's exclusive lock.
// The lock is released on every exit path. A panic in fn is returned as ErrSessionPanicked.
func (s *SessionStore) With(key string, fn func(*Session) error) (err error) {
	s.mu.RLock()
	entry, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// evicted while we were waiting
	if entry.removed.Load() {
		return ErrSessionNotFound
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[SESSION] handler panicked", zap.String("key", key), zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrSessionPanicked, r)
		}
	}()

	err = fn(entry.session)

	now := s.now()
	entry.lastTouched = now
	if entry.committedAt.IsZero() && entry.session.Phase() == PhaseCommitted {
		entry.committedAt = now
	}
	return err
}

// Remove drops the session. Removing a missing key is a no-op.
func (s *SessionStore) Remove(key string) {
	s.mu.Lock()
	entry, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		entry.removed.Store(true)
	}
}

// Sweep evicts idle uncommitted sessions and committed sessions past retention.
// Sessions locked by an in-flight action are skipped until the next sweep.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, entry := range s.sessions {
		if !entry.mu.TryLock() {
			continue
		}
		var expired bool
		if !entry.committedAt.IsZero() {
			expired = now.Sub(entry.committedAt) >= s.retention
		} else {
			expired = now.Sub(entry.lastTouched) >= s.idleTimeout
		}
		if expired {
			entry.removed.Store(true)
			delete(s.sessions, key)
			evicted++
		}
		entry.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Info("[SESSION] swept sessions", zap.Int("evicted", evicted), zap.Int("remaining", len(s.sessions)))
	}
	return evicted
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
