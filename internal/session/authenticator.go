package session

import (
	"sync"
	"sync/atomic"

	"github.com/rishav/hft-engine/internal/wire"
)

// StaticAuthenticator checks credentials against an in-memory
// name/password table, minting a new client ID the first time a name
// authenticates successfully and reusing it on subsequent logins.
// Grounded on the original's session::Authenticator, which delegates
// credential checking to a DbAdapter/PostgresAdapter — spec.md §1
// externalizes that persistent credential store as an out-of-process
// collaborator (SPEC_FULL.md §6 DOMAIN STACK explicitly declines to wire
// a real SQL driver for it), so this is the in-process stand-in that
// implements the same Authenticator contract against a fixed table
// instead of a database connection.
type StaticAuthenticator struct {
	credentials map[string]string // name -> password

	mu        sync.Mutex
	clientIDs map[string]uint64
	nextID    atomic.Uint64
}

// NewStaticAuthenticator builds an authenticator over credentials (name
// -> password). Callers wanting a database-backed authenticator instead
// implement the same Authenticator interface against their store.
func NewStaticAuthenticator(credentials map[string]string) *StaticAuthenticator {
	return &StaticAuthenticator{
		credentials: credentials,
		clientIDs:   make(map[string]uint64),
	}
}

// Authenticate implements Authenticator.
func (a *StaticAuthenticator) Authenticate(req wire.LoginRequest) (clientID uint64, ok bool, reason string) {
	want, known := a.credentials[req.Name]
	if !known {
		return 0, false, "AuthUserNotFound"
	}
	if want != req.Password {
		return 0, false, "AuthBadPassword"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.clientIDs[req.Name]
	if !ok {
		id = a.nextID.Add(1)
		a.clientIDs[req.Name] = id
	}
	return id, true, ""
}
