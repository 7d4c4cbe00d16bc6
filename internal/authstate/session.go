package authstate

import (
	"context"
	"sync"
	"time"
)

// EventType tags a session change notification.
type EventType string

const (
	// EventInitialSession is the store's replay of the session found at
	// startup. The machine fetches that session itself, so this event is
	// deliberately ignored to avoid double-processing.
	EventInitialSession EventType = "initial_session"
	EventSignedIn       EventType = "signed_in"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSignedOut      EventType = "signed_out"
)

// User is the identity carried by a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a bearer credential with expiry. The session store owns it;
// everything else holds read-only copies.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.User.ID != ""
}

// SessionEvent is one change notification. Session is nil on sign-out.
type SessionEvent struct {
	Type    EventType
	Session *Session
}

// SessionStore is the session source the machine consumes.
//
// Subscribe returns a channel of change events plus an unsubscribe func;
// each machine holds exactly one subscription and releases it on Close.
type SessionStore interface {
	// CurrentSession returns the active session, or nil when signed out.
	// May involve a network round trip.
	CurrentSession(ctx context.Context) (*Session, error)
	Subscribe() (<-chan SessionEvent, func())
}

// MemorySessionStore is an in-process SessionStore. It backs tests and
// long-lived clients that track their own sign-in lifecycle.
type MemorySessionStore struct {
	mu      sync.Mutex
	current *Session
	subs    map[int]chan SessionEvent
	nextID  int
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{subs: make(map[int]chan SessionEvent)}
}

func (s *MemorySessionStore) CurrentSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *MemorySessionStore) Subscribe() (<-chan SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan SessionEvent, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// SignIn installs a session and notifies subscribers.
func (s *MemorySessionStore) SignIn(sess *Session) {
	s.emit(SessionEvent{Type: EventSignedIn, Session: sess})
}

// Refresh replaces the current session's credential.
func (s *MemorySessionStore) Refresh(sess *Session) {
	s.emit(SessionEvent{Type: EventTokenRefreshed, Session: sess})
}

// SignOut clears the session and notifies subscribers.
func (s *MemorySessionStore) SignOut() {
	s.emit(SessionEvent{Type: EventSignedOut, Session: nil})
}

// ReplayInitial mimics provider SDKs that echo the startup session to new
// subscribers.
func (s *MemorySessionStore) ReplayInitial() {
	s.mu.Lock()
	cur := s.current
	subs := snapshotSubs(s.subs)
	s.mu.Unlock()
	for _, ch := range subs {
		send(ch, SessionEvent{Type: EventInitialSession, Session: cur})
	}
}

func (s *MemorySessionStore) emit(e SessionEvent) {
	s.mu.Lock()
	s.current = e.Session
	subs := snapshotSubs(s.subs)
	s.mu.Unlock()
	for _, ch := range subs {
		send(ch, e)
	}
}

func snapshotSubs(m map[int]chan SessionEvent) []chan SessionEvent {
	out := make([]chan SessionEvent, 0, len(m))
	for _, ch := range m {
		out = append(out, ch)
	}
	return out
}

// send never blocks; a subscriber that stops draining loses events rather
// than wedging the store.
func send(ch chan SessionEvent, e SessionEvent) {
	select {
	case ch <- e:
	default:
	}
}
