package websocket

import (
	"testing"
	"time"
)

type fakeConn struct {
	written []interface{}
	binary  [][]byte
	closed  bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.binary = append(f.binary, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

// stalledConn never finishes a write until released, like a peer whose
// TCP buffer is full.
type stalledConn struct {
	release chan struct{}
}

func (s *stalledConn) WriteJSON(v interface{}) error {
	<-s.release
	return nil
}

func (s *stalledConn) WriteMessage(messageType int, data []byte) error {
	<-s.release
	return nil
}

func (s *stalledConn) SetWriteDeadline(t time.Time) error { return nil }

func (s *stalledConn) Close() error { return nil }

func TestSendToUnboundRoleIsNoop(t *testing.T) {
	r := NewRegistry()

	if err := r.Send("missing", RoleOperator, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("send to unbound role should not error: %v", err)
	}
}

func TestBindReplacesAndClosesOldConnection(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Bind("s1", RoleScammer, old)
	r.Bind("s1", RoleScammer, replacement)

	if !old.closed {
		t.Fatalf("replaced connection was not closed")
	}

	if err := r.Send("s1", RoleScammer, "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(replacement.written) != 1 {
		t.Fatalf("replacement connection did not receive the message")
	}
	if len(old.written) != 0 {
		t.Fatalf("old connection received a message after replacement")
	}
}

func TestUnbindIgnoresStaleConnection(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Bind("s1", RoleOperator, old)
	r.Bind("s1", RoleOperator, replacement)
	r.Unbind("s1", RoleOperator, old)

	if err := r.Send("s1", RoleOperator, "still here"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(replacement.written) != 1 {
		t.Fatalf("stale unbind evicted the replacement connection")
	}
}

func TestUnbindReportsWhetherRemoved(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Bind("s1", RoleOperator, old)
	r.Bind("s1", RoleOperator, replacement)

	if r.Unbind("s1", RoleOperator, old) {
		t.Fatalf("stale unbind reported a removal")
	}
	if !r.Unbind("s1", RoleOperator, replacement) {
		t.Fatalf("unbind of the live connection reported no removal")
	}
}

func TestStalledPeerDoesNotBlockOtherSessions(t *testing.T) {
	r := NewRegistry()
	stalled := &stalledConn{release: make(chan struct{})}
	healthy := &fakeConn{}

	r.Bind("s-stalled", RoleScammer, stalled)
	r.Bind("s-healthy", RoleScammer, healthy)

	go r.Send("s-stalled", RoleScammer, "never drains")

	done := make(chan struct{})
	go func() {
		_ = r.Send("s-healthy", RoleScammer, "hello")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("send to a healthy session blocked behind a stalled peer")
	}
	close(stalled.release)

	if len(healthy.written) != 1 {
		t.Fatalf("healthy connection did not receive the message")
	}
}

func TestUnbindIsIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Bind("s1", RoleScammer, conn)
	r.Unbind("s1", RoleScammer, conn)
	r.Unbind("s1", RoleScammer, conn)

	if roles := r.Roles("s1"); len(roles) != 0 {
		t.Fatalf("expected no roles after unbind, got %v", roles)
	}
}

func TestBroadcastReachesAllRoles(t *testing.T) {
	r := NewRegistry()
	scammer := &fakeConn{}
	operator := &fakeConn{}

	r.Bind("s1", RoleScammer, scammer)
	r.Bind("s1", RoleOperator, operator)
	r.Broadcast("s1", "update")

	if len(scammer.written) != 1 || len(operator.written) != 1 {
		t.Fatalf("broadcast missed a role: scammer=%d operator=%d", len(scammer.written), len(operator.written))
	}
}

func TestCloseSessionClosesEverything(t *testing.T) {
	r := NewRegistry()
	scammer := &fakeConn{}
	operator := &fakeConn{}

	r.Bind("s1", RoleScammer, scammer)
	r.Bind("s1", RoleOperator, operator)
	r.CloseSession("s1")

	if !scammer.closed || !operator.closed {
		t.Fatalf("connections not closed on session close")
	}
	if err := r.Send("s1", RoleScammer, "late"); err != nil {
		t.Fatalf("send after close should no-op: %v", err)
	}
	if len(scammer.written) != 0 {
		t.Fatalf("message delivered after session close")
	}
}
