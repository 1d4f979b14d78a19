package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// RoleAdmin is the only role with broadcast semantics today.
const RoleAdmin = "admin"

// Conn is the live push handle held per actor. The websocket
// connection satisfies it; tests substitute fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// RoleLookup resolves current role membership for broadcasts. Kept as
// an interface so tests can substitute a fixed admin set.
type RoleLookup interface {
	MemberIDs(ctx context.Context, role string) ([]string, error)
}

// Envelope is the wire frame for server→client events.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type entry struct {
	conn Conn
	mu   sync.Mutex
}

func (e *entry) writeJSON(v interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(v)
}

// Registry maps authenticated actor IDs to live connections. One entry
// per actor: a reconnect replaces and closes the previous handle.
// Lifecycle-scoped; construct once per server instance and Close on
// shutdown.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	lookup RoleLookup
	logger *zap.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(lookup RoleLookup, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:  make(map[string]*entry),
		lookup: lookup,
		logger: logger,
	}
}

// Register records the connection for actorID, replacing any prior one.
func (r *Registry) Register(actorID string, conn Conn) {
	r.mu.Lock()
	prev := r.conns[actorID]
	r.conns[actorID] = &entry{conn: conn}
	r.mu.Unlock()

	if prev != nil {
		_ = prev.conn.Close()
	}
}

// Unregister removes the entry for actorID if it still holds conn.
// Idempotent; a stale disconnect never evicts a newer connection.
func (r *Registry) Unregister(actorID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[actorID]; ok && current.conn == conn {
		delete(r.conns, actorID)
	}
}

// Send pushes an event to the actor's live connection. Fire-and-forget:
// no connection, no error; write failures are logged and dropped.
func (r *Registry) Send(actorID, event string, payload interface{}) {
	r.mu.RLock()
	target := r.conns[actorID]
	r.mu.RUnlock()

	if target == nil {
		return
	}
	if err := target.writeJSON(Envelope{Event: event, Data: payload}); err != nil {
		r.logger.Debug("push delivery failed",
			zap.String("actor_id", actorID),
			zap.String("event", event),
			zap.Error(err))
	}
}

// BroadcastToRole resolves current membership and sends to each member.
// Members without a live connection are silently skipped.
func (r *Registry) BroadcastToRole(ctx context.Context, role, event string, payload interface{}) error {
	if r.lookup == nil {
		return nil
	}
	ids, err := r.lookup.MemberIDs(ctx, role)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.Send(id, event, payload)
	}
	return nil
}

// Connected reports whether actorID currently holds a connection.
func (r *Registry) Connected(actorID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[actorID]
	return ok
}

// Close tears down every live connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range conns {
		_ = e.conn.Close()
	}
}
