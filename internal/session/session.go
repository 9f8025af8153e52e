// Package session implements the session manager spec.md §4.12
// describes: pre-session connection buckets, the login/token-bind
// handshake, and the live client_id->session map outgoing statuses are
// routed through. Grounded on the teacher's single-writer-owns-the-map
// discipline (the teacher never shares mutable maps across goroutines
// without a clear owner) generalized to the concurrent-access pattern
// spec.md §4.12 explicitly calls for: "the session map is accessed from
// the transport reactor thread and from the bus dispatcher thread; use a
// concurrent map with lock-free lookup." sync.Map is the stdlib answer
// to exactly that access pattern (many concurrent readers, a single
// logical writer per key) and no pack library targets anything narrower
// than a general-purpose cache for this, so this is a deliberate
// stdlib-only component.
package session

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/wire"
)

// Sender is the narrow surface a session needs from a channel: write a
// message toward the client and report the channel's identity. The real
// implementation lives in internal/channel; this package only depends on
// the interface so it can be tested without a transport.
type Sender interface {
	ChannelID() uint64
	Send(msg any) error
}

// Session is the live per-client record spec.md §4.12 names: client ID,
// token, and the upstream/downstream channel handles.
type Session struct {
	ClientID     uint64
	Token        uint64
	connectionID uint64 // upstream connection id, for byConn cleanup on disconnect
	mu           sync.RWMutex
	upstream     Sender
	downstream   Sender
}

func (s *Session) setUpstream(c Sender) {
	s.mu.Lock()
	s.upstream = c
	s.mu.Unlock()
}

func (s *Session) setDownstream(c Sender) {
	s.mu.Lock()
	s.downstream = c
	s.mu.Unlock()
}

func (s *Session) hasChannel(id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (s.upstream != nil && s.upstream.ChannelID() == id) ||
		(s.downstream != nil && s.downstream.ChannelID() == id)
}

func (s *Session) sendDownstream(msg any) bool {
	s.mu.RLock()
	d := s.downstream
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	return d.Send(msg) == nil
}

// Authenticator checks a name/password pair, returning the client ID to
// mint a session for. This is the narrow surface the manager needs from
// whatever backs spec.md §4.12's "authenticator" (a config file, a
// database — externalized per spec.md §1's scope boundary).
type Authenticator interface {
	Authenticate(req wire.LoginRequest) (clientID uint64, ok bool, reason string)
}

// Manager implements the §4.12 protocol: pre-session buckets keyed by
// connection ID, and a live session map keyed by both token and client
// ID so lookups from either the token-bind path or the outbound-status
// path are O(1).
type Manager struct {
	auth Authenticator
	log  *zap.Logger

	pending sync.Map // connection id (uint64) -> *Session (unauthenticated, upstream only)
	byToken sync.Map // token (uint64) -> *Session
	byClient sync.Map // client id (uint64) -> *Session
	byConn  sync.Map // upstream connection id (uint64) -> *Session, kept for the life of the connection

	nextToken atomic.Uint64
}

// NewManager creates a Manager backed by auth.
func NewManager(auth Authenticator, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{auth: auth, log: log}
}

// Connect places a newly-connected upstream channel into the
// unauthenticated bucket, keyed by its connection ID (spec.md §4.12 step
// 1).
func (m *Manager) Connect(connectionID uint64, ch Sender) {
	s := &Session{connectionID: connectionID}
	s.setUpstream(ch)
	m.pending.Store(connectionID, s)
	m.byConn.Store(connectionID, s)
}

// AttachClientID looks up the session bound to connectionID's upstream
// channel and returns its client ID, implementing spec.md §2's dataflow
// step "UpstreamBus -> SessionManager (attaches client id) -> ServerOrder":
// the channel layer only knows wire.Order and its own connection ID, not
// the client ID the gateway's OrderRecord table is keyed by. Returns
// false for a connection that has not completed login yet (still
// pending) or is unknown.
func (m *Manager) AttachClientID(connectionID uint64) (clientID uint64, ok bool) {
	v, found := m.byConn.Load(connectionID)
	if !found {
		return 0, false
	}
	s := v.(*Session)
	if s.Token == 0 {
		return 0, false // connected but not yet logged in
	}
	return s.ClientID, true
}

// HandleLogin processes a LoginRequest read off an unauthenticated
// upstream channel (step 2-3): it calls out to the authenticator, mints
// a token on success, promotes the pending session into the live maps,
// and replies on the same channel either way.
func (m *Manager) HandleLogin(connectionID uint64, req wire.LoginRequest) {
	v, ok := m.pending.Load(connectionID)
	if !ok {
		return
	}
	s := v.(*Session)

	clientID, authOK, reason := m.auth.Authenticate(req)
	if !authOK {
		m.log.Debug("login rejected", zap.Uint64("connection_id", connectionID), zap.String("reason", reason))
		s.sendUpstreamReply(wire.LoginResponse{Ok: false, Error: reason})
		return
	}

	token := m.nextToken.Add(1)
	s.ClientID = clientID
	s.Token = token

	m.pending.Delete(connectionID)
	m.byToken.Store(token, s)
	m.byClient.Store(clientID, s)

	m.log.Info("session established", zap.Uint64("client_id", clientID), zap.Uint64("token", token))
	s.sendUpstreamReply(wire.LoginResponse{Token: token, Ok: true})
}

// HandleTokenBind processes a TokenBindRequest read off a newly-connected
// downstream channel (step 4): it finds the session by token and binds
// the downstream handle into it.
func (m *Manager) HandleTokenBind(ch Sender, req wire.TokenBindRequest) bool {
	v, ok := m.byToken.Load(req.Token)
	if !ok {
		return false
	}
	s := v.(*Session)
	s.setDownstream(ch)
	s.sendDownstream(wire.LoginResponse{Token: req.Token, Ok: true})
	return true
}

// RouteStatus writes status to clientID's downstream channel, dropping it
// silently if no live session exists for that client (step 5).
func (m *Manager) RouteStatus(status domain.ServerOrderStatus) {
	v, ok := m.byClient.Load(status.ClientID)
	if !ok {
		return
	}
	s := v.(*Session)
	s.sendDownstream(status.Status)
}

// HandleDisconnect removes connectionID from whichever bucket holds it.
// If it belongs to a live session, the session is removed from every
// index regardless of which of its two channels disconnected. Neither of
// the session's channels is closed here.
func (m *Manager) HandleDisconnect(connectionID uint64) {
	if v, ok := m.pending.LoadAndDelete(connectionID); ok {
		m.byConn.Delete(v.(*Session).connectionID)
		return
	}
	m.byClient.Range(func(_, v any) bool {
		s := v.(*Session)
		if s.hasChannel(connectionID) {
			m.log.Info("session torn down", zap.Uint64("client_id", s.ClientID))
			m.byToken.Delete(s.Token)
			m.byClient.Delete(s.ClientID)
			m.byConn.Delete(s.connectionID)
			return false
		}
		return true
	})
}

// Broadcast writes msg to every live session's downstream channel,
// silently skipping any session with no bound downstream yet. Used to
// fan TickerPrice updates (spec.md §4.16) out to every connected client
// over the same downstream channel order statuses are routed through.
func (m *Manager) Broadcast(msg any) {
	m.byClient.Range(func(_, v any) bool {
		v.(*Session).sendDownstream(msg)
		return true
	})
}

// Count returns the number of live (logged-in) sessions, for tests and
// diagnostics.
func (m *Manager) Count() int {
	n := 0
	m.byClient.Range(func(_, _ any) bool { n++; return true })
	return n
}

func (s *Session) sendUpstreamReply(msg wire.LoginResponse) {
	s.mu.RLock()
	u := s.upstream
	s.mu.RUnlock()
	if u != nil {
		_ = u.Send(msg)
	}
}
