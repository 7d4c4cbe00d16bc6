package authstate

import (
	"context"
	"sync"
	"time"

	"kagra-platform/pkg/logger"
)

// State is the machine's top-level authentication state.
type State string

const (
	StateInitializing    State = "initializing"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is the unified auth view exposed to consumers.
//
// Invariants:
//   - Loading is true exactly while a permission check is outstanding.
//   - IsAdmin is false until a check succeeds, and falls back to false on
//     any error or timeout (fail-closed).
type Snapshot struct {
	State     State
	User      *User
	Session   *Session
	Loading   bool
	IsAdmin   bool
	CheckedAt time.Time
}

type checkResult struct {
	epoch uint64
	admin bool
}

// Machine subscribes to a SessionStore, drives the PermissionResolver on
// every session change, and publishes Snapshots.
//
// All transitions run on a single event-loop goroutine; there is no
// concurrent mutation. Permission checks run asynchronously and report
// back into the loop tagged with an epoch so that a result arriving after
// sign-out (or after a newer session) is discarded instead of resurrecting
// stale privileges.
type Machine struct {
	store    SessionStore
	resolver PermissionResolver
	clock    func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	events      <-chan SessionEvent
	unsubscribe func()
	results     chan checkResult
	updates     chan Snapshot

	epoch       uint64
	cancelCheck context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	cancelRun context.CancelFunc
	stopped   chan struct{}
}

func NewMachine(store SessionStore, resolver PermissionResolver) *Machine {
	return &Machine{
		store:    store,
		resolver: resolver,
		clock:    time.Now,
		snap:     Snapshot{State: StateInitializing, Loading: true},
		results:  make(chan checkResult, 1),
		updates:  make(chan Snapshot, 16),
		stopped:  make(chan struct{}),
	}
}

// Start subscribes to the session store and launches the event loop.
func (m *Machine) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		m.cancelRun = cancel
		m.events, m.unsubscribe = m.store.Subscribe()
		go m.run(runCtx)
	})
}

// Close stops the event loop, releases the subscription, and cancels any
// in-flight permission check. Safe to call more than once.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		if m.cancelRun != nil {
			m.cancelRun()
			<-m.stopped
		}
	})
}

// Snapshot returns the current auth view.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Updates delivers snapshots after each transition. Slow consumers lose
// intermediate snapshots, never the ability to read the latest via
// Snapshot(). The channel closes when the machine stops.
func (m *Machine) Updates() <-chan Snapshot {
	return m.updates
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.stopped)
	defer close(m.updates)
	defer m.unsubscribe()
	defer m.stopCheck()

	// Initial session fetch; failure reads as signed out.
	sess, err := m.store.CurrentSession(ctx)
	if err != nil {
		logger.From(ctx).Warn("initial session fetch failed", "err", err)
		sess = nil
	}
	if sess.Authenticated() {
		m.enterAuthenticated(ctx, sess)
	} else {
		m.enterUnauthenticated()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-m.events:
			if !ok {
				return
			}
			m.handleEvent(ctx, e)
		case r := <-m.results:
			m.handleResult(r)
		}
	}
}

func (m *Machine) handleEvent(ctx context.Context, e SessionEvent) {
	// The store replays the startup session to fresh subscribers; the
	// initial fetch already covered it, so a second check would be wasted.
	if e.Type == EventInitialSession {
		return
	}
	if e.Session.Authenticated() {
		m.enterAuthenticated(ctx, e.Session)
		return
	}
	m.enterUnauthenticated()
}

// enterAuthenticated records the session and starts a permission check for
// its user. Any older in-flight check is cancelled and its epoch retired.
func (m *Machine) enterAuthenticated(ctx context.Context, sess *Session) {
	m.stopCheck()
	m.epoch++

	snap := m.Snapshot()
	snap.State = StateAuthenticated
	snap.User = &sess.User
	snap.Session = sess
	snap.Loading = true
	m.publish(snap)

	epoch := m.epoch
	checkCtx, cancel := context.WithCancel(ctx)
	m.cancelCheck = cancel
	go func() {
		admin, err := m.resolver.CheckIsAdmin(checkCtx, sess.User.ID, sess)
		if err != nil {
			logger.From(checkCtx).Warn("permission check failed", "user_id", sess.User.ID, "err", err)
			admin = false
		}
		select {
		case m.results <- checkResult{epoch: epoch, admin: admin}:
		case <-checkCtx.Done():
		}
	}()
}

// enterUnauthenticated clears all auth state immediately. A permission
// check still in flight is cancelled, and bumping the epoch guarantees its
// result could never re-grant access even if it slipped through.
func (m *Machine) enterUnauthenticated() {
	m.stopCheck()
	m.epoch++
	m.publish(Snapshot{State: StateUnauthenticated})
}

func (m *Machine) handleResult(r checkResult) {
	if r.epoch != m.epoch {
		return // stale check, session changed since it started
	}
	snap := m.Snapshot()
	if snap.State != StateAuthenticated {
		return
	}
	snap.IsAdmin = r.admin
	snap.Loading = false
	snap.CheckedAt = m.clock()
	m.publish(snap)
}

func (m *Machine) stopCheck() {
	if m.cancelCheck != nil {
		m.cancelCheck()
		m.cancelCheck = nil
	}
}

func (m *Machine) publish(snap Snapshot) {
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()

	// Coalesce rather than block: make room for the newest snapshot.
	for {
		select {
		case m.updates <- snap:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}
