package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driving"
)

// OpenFunc opens a session for one user editing one document
type OpenFunc func(ctx context.Context, userID, documentID string) (driving.Session, error)

// Sessions is the registry of open editing sessions, keyed by the caller's
// tab session and document. Thread-safe for concurrent access.
type Sessions struct {
	open   OpenFunc
	now    func() time.Time
	logger *slog.Logger

	// Opens run outside mu; concurrent opens of one key share a flight
	flight singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  driving.Session
	lastUsed time.Time
}

// NewSessions creates an empty registry
func NewSessions(open OpenFunc, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		open:     open,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*entry),
	}
}

func sessionKey(auth *domain.AuthContext, documentID string) string {
	return auth.UserID + ":" + auth.SessionID + ":" + documentID
}

// Get returns the caller's session for documentID, opening it on first use
func (s *Sessions) Get(ctx context.Context, auth *domain.AuthContext, documentID string) (driving.Session, error) {
	if auth == nil || documentID == "" {
		return nil, domain.ErrInvalidInput
	}
	key := sessionKey(auth, documentID)

	if session := s.lookup(key); session != nil {
		return session, nil
	}

	result, err, _ := s.flight.Do(key, func() (any, error) {
		// A flight that just finished may have registered it
		if session := s.lookup(key); session != nil {
			return session, nil
		}
		session, err := s.open(ctx, auth.UserID, documentID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.sessions[key] = &entry{session: session, lastUsed: s.now()}
		open := len(s.sessions)
		s.mu.Unlock()

		s.logger.Info("session registered", "user_id", auth.UserID, "document_id", documentID, "open", open)
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(driving.Session), nil
}

func (s *Sessions) lookup(key string) driving.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[key]
	if !ok {
		return nil
	}
	e.lastUsed = s.now()
	return e.session
}

// Close closes and forgets the caller's session for documentID
func (s *Sessions) Close(auth *domain.AuthContext, documentID string) error {
	key := sessionKey(auth, documentID)

	s.mu.Lock()
	e, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return e.session.Close()
}

// Sweep closes sessions unused for longer than maxIdle and returns how many
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var idle []driving.Session
	for key, e := range s.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e.session)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, session := range idle {
		if err := session.Close(); err != nil {
			s.logger.Warn("failed to close idle session", "document_id", session.DocumentID(), "error", err)
		}
	}
	return len(idle)
}

// Len returns the number of open sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll closes every session, used on shutdown
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range all {
		if err := e.session.Close(); err != nil {
			s.logger.Warn("failed to close session", "document_id", e.session.DocumentID(), "error", err)
		}
	}
}
