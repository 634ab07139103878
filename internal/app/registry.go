package app

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jamstage/jamstage/internal/core"
)

// Registry owns the set of live transport connections. It is the only
// component holding transport handles; rooms and participants reference
// sessions by id. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.SessionID]core.SignalConnection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.SessionID]core.SignalConnection)}
}

// Register assigns a fresh session id to a connection. Collisions are
// treated as impossible.
func (r *Registry) Register(conn core.SignalConnection) core.SessionID {
	sid := core.SessionID(uuid.NewString())
	r.mu.Lock()
	r.conns[sid] = conn
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return sid
}

func (r *Registry) Lookup(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[sid]
	return conn, ok
}

func (r *Registry) Unregister(sid core.SessionID) {
	r.mu.Lock()
	delete(r.conns, sid)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered connection")
}

// Count is the ground truth for total live connections, diagnostics only.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
