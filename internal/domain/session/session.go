package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the session idle timeout applied when a Manager is
// constructed with timeout <= 0.
const DefaultTimeout = 300 * time.Second

// DefaultSweepInterval is how often the Manager scans for expired sessions.
const DefaultSweepInterval = 60 * time.Second

// OnTerminate is invoked whenever a session leaves the map, whether by
// explicit Terminate or by the sweep, so the owning transport can tear
// down any streaming connection attached to it.
type OnTerminate func(*Session)

// Manager mints, looks up, and expires sessions for one transport
// instance. The zero value is not usable; build with NewManager.
type Manager struct {
	store   *Store
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	onTerminate OnTerminate

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager builds a Manager with the given idle timeout (DefaultTimeout
// if <= 0) and logger.
func NewManager(timeout time.Duration, logger *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   NewStore(),
		timeout: timeout,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// SetOnTerminate registers the hook called when a session is removed,
// whether by Terminate or by the expiration sweep.
func (m *Manager) SetOnTerminate(hook OnTerminate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminate = hook
}

func (m *Manager) fireOnTerminate(sess *Session) {
	m.mu.Lock()
	hook := m.onTerminate
	m.mu.Unlock()
	if hook != nil {
		hook(sess)
	}
}

// GetOrCreate returns the session for id, touching its last-accessed time
// and replacing its RequestContext, or creates one if id is empty, absent,
// or expired. created reports whether a new Session was minted. A
// caller-supplied id that matches no live session mints a session under
// that exact id — used by the stdio transport's fixed GlobalStdioID, and
// by HTTP/SSE when a client-presented Mcp-Session-Id is unknown and the
// correct response is a fresh session rather than an error.
func (m *Manager) GetOrCreate(id, transport string, reqCtx RequestContext) (sess *Session, created bool) {
	if id != "" {
		if existing, ok := m.store.get(id); ok && !existing.IsExpired(m.timeout) {
			existing.Touch()
			existing.RequestContext = reqCtx
			return existing, false
		}
	}

	newID := id
	if newID == "" {
		newID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess = &Session{
		ID:             newID,
		CreatedAt:      now,
		LastAccessed:   now,
		State:          Pending,
		Transport:      transport,
		RequestContext: reqCtx,
	}
	m.store.put(sess)
	return sess, true
}

// Get returns the live, non-expired session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	sess, ok := m.store.get(id)
	if !ok || sess.IsExpired(m.timeout) {
		return nil, false
	}
	return sess, true
}

// Terminate removes the session for id, invoking the onTerminate hook if
// set. The stdio transport's GlobalStdioID session is never terminable —
// its lifecycle is bound to the process, not to an explicit close.
func (m *Manager) Terminate(id string) bool {
	if id == GlobalStdioID {
		return false
	}
	sess, ok := m.store.get(id)
	if !ok {
		return false
	}
	m.store.delete(id)
	m.fireOnTerminate(sess)
	return true
}

// Broadcast iterates every live session, calling send for each. send
// returns false when the transport could not deliver (e.g. an HTTP
// session with no active GET stream); those sessions are skipped from
// the count but otherwise untouched. Broadcast returns how many sessions
// received the message.
func (m *Manager) Broadcast(send func(*Session) bool) int {
	count := 0
	for _, sess := range m.store.list() {
		if sess.IsExpired(m.timeout) {
			continue
		}
		if send(sess) {
			count++
		}
	}
	return count
}

// StartSweep launches the periodic expiration sweep at DefaultSweepInterval
// (or interval, if positive). The stdio transport never calls this — its
// single implicit session has no expiration model. Stop ends the sweep
// goroutine; StartSweep must not be called again after Stop.
func (m *Manager) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	for _, sess := range m.store.list() {
		if !sess.IsExpired(m.timeout) {
			continue
		}
		if m.store.delete(sess.ID) {
			m.logger.Debug("session expired", "session_id", sess.ID, "transport", sess.Transport)
			m.fireOnTerminate(sess)
		}
	}
}

// Stop halts the sweep goroutine and waits for it to exit. Safe to call
// more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Count returns the number of sessions currently tracked, including any
// expired-but-not-yet-swept ones.
func (m *Manager) Count() int {
	return len(m.store.list())
}
