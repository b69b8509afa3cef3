package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Conn is the subset of a websocket connection the registry needs. The
// fiber websocket connection satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	RoleScammer  = "scammer"
	RoleOperator = "operator"

	writeWait = 10 * time.Second
)

// binding serializes writes to one connection. Holding a per-connection
// lock instead of the registry lock means a peer that stops reading can
// only stall its own writes, never another session's.
type binding struct {
	mu   sync.Mutex
	conn Conn
}

func (b *binding) writeJSON(v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return b.conn.WriteJSON(v)
}

func (b *binding) writeMessage(messageType int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return b.conn.WriteMessage(messageType, data)
}

// Registry tracks at most one live connection per (session, role). The
// registry mutex guards only the binding maps; actual writes happen
// under each binding's own lock with a write deadline.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[string]*binding
}

type IRegistry interface {
	Bind(sessionID string, role string, conn Conn)
	Unbind(sessionID string, role string, conn Conn) bool
	Send(sessionID string, role string, message interface{}) error
	SendBinary(sessionID string, role string, data []byte) error
	Broadcast(sessionID string, message interface{})
	Roles(sessionID string) []string
	CloseSession(sessionID string)
}

func NewRegistry() IRegistry {
	return &Registry{
		sessions: make(map[string]map[string]*binding),
	}
}

// Bind attaches a connection for the role. An existing connection on the
// same role is closed and replaced, so a reconnecting client always wins.
func (r *Registry) Bind(sessionID string, role string, conn Conn) {
	r.mu.Lock()

	roles, ok := r.sessions[sessionID]
	if !ok {
		roles = make(map[string]*binding)
		r.sessions[sessionID] = roles
	}

	var replaced Conn
	if old, ok := roles[role]; ok && old.conn != conn {
		logrus.Info(fmt.Sprintf("Replacing %s connection for session %s", role, sessionID))
		replaced = old.conn
	}

	roles[role] = &binding{conn: conn}
	r.mu.Unlock()

	if replaced != nil {
		_ = replaced.Close()
	}
}

// Unbind detaches the connection only if it is still the bound one, so a
// stale disconnect never evicts a replacement. Reports whether a binding
// was actually removed.
func (r *Registry) Unbind(sessionID string, role string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	roles, ok := r.sessions[sessionID]
	if !ok {
		return false
	}

	if current, ok := roles[role]; !ok || current.conn != conn {
		return false
	}

	delete(roles, role)
	if len(roles) == 0 {
		delete(r.sessions, sessionID)
	}
	return true
}

// Send writes a JSON message to the role's connection. A missing binding
// is logged and dropped, never an error for the caller's flow.
func (r *Registry) Send(sessionID string, role string, message interface{}) error {
	b := r.binding(sessionID, role)
	if b == nil {
		logrus.Debug(fmt.Sprintf("No %s connection bound for session %s, dropping message", role, sessionID))
		return nil
	}

	if err := b.writeJSON(message); err != nil {
		logrus.Warn(fmt.Sprintf("Failed to write to %s connection for session %s: %v", role, sessionID, err))
		return err
	}

	return nil
}

// SendBinary writes a raw binary frame, used for relaying audio.
func (r *Registry) SendBinary(sessionID string, role string, data []byte) error {
	b := r.binding(sessionID, role)
	if b == nil {
		logrus.Debug(fmt.Sprintf("No %s connection bound for session %s, dropping audio frame", role, sessionID))
		return nil
	}

	if err := b.writeMessage(2, data); err != nil {
		logrus.Warn(fmt.Sprintf("Failed to write audio to %s connection for session %s: %v", role, sessionID, err))
		return err
	}

	return nil
}

// Broadcast delivers the message to every connection in the session.
func (r *Registry) Broadcast(sessionID string, message interface{}) {
	r.mu.Lock()
	targets := make(map[string]*binding, len(r.sessions[sessionID]))
	for role, b := range r.sessions[sessionID] {
		targets[role] = b
	}
	r.mu.Unlock()

	for role, b := range targets {
		if err := b.writeJSON(message); err != nil {
			logrus.Warn(fmt.Sprintf("Broadcast to %s in session %s failed: %v", role, sessionID, err))
		}
	}
}

// Roles reports which roles currently hold a live connection.
func (r *Registry) Roles(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roles := make([]string, 0, len(r.sessions[sessionID]))
	for role := range r.sessions[sessionID] {
		roles = append(roles, role)
	}
	return roles
}

// CloseSession closes and forgets every connection in the session.
func (r *Registry) CloseSession(sessionID string) {
	r.mu.Lock()
	bindings := make([]*binding, 0, len(r.sessions[sessionID]))
	for _, b := range r.sessions[sessionID] {
		bindings = append(bindings, b)
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	for _, b := range bindings {
		_ = b.conn.Close()
	}
}

func (r *Registry) binding(sessionID string, role string) *binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	roles, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	return roles[role]
}
