package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	writes chan Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan Message, 16), closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                  {}
func (f *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error    { return nil }
func (f *fakeConn) SetPongHandler(func(string) error)   {}
func (f *fakeConn) Close() error                        { f.once.Do(func() { close(f.closed) }); return nil }
func (f *fakeConn) ReadMessage() (int, []byte, error)   { <-f.closed; return 0, nil, errors.New("closed") }

func (f *fakeConn) WriteMessage(t int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	mt := JSONMessage
	switch t {
	case websocket.BinaryMessage:
		mt = BinaryMessage
	case websocket.CloseMessage:
		return nil
	}
	f.writes <- Message{Type: mt, Data: data}
	return nil
}

func (f *fakeConn) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-f.writes:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write")
		return Message{}
	}
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	<-h.Running()
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return cancel
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, h.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := New("test")
	startHub(t, h)

	a, b := newFakeConn(), newFakeConn()
	go newClient(h, a).Run()
	go newClient(h, b).Run()
	waitClients(t, h, 2)

	if err := h.BroadcastJSON(map[string]int{"fps": 4}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, c := range []*fakeConn{a, b} {
		m := c.next(t)
		if m.Type != JSONMessage {
			t.Errorf("Expected JSON message, got %v", m.Type)
		}
		var got map[string]int
		json.Unmarshal(m.Data, &got)
		if got["fps"] != 4 {
			t.Errorf("Unexpected payload %s", m.Data)
		}
	}

	h.BroadcastBinary([]byte{0xff, 0xd8})
	if m := a.next(t); m.Type != BinaryMessage || len(m.Data) != 2 {
		t.Errorf("Unexpected binary message %+v", m)
	}
}

func TestHubGreetsNewClients(t *testing.T) {
	h := New("state")
	h.OnRegister(func() (Message, bool) {
		return NewJSONMessage([]byte(`{"running":false}`)), true
	})
	startHub(t, h)

	c := newFakeConn()
	go newClient(h, c).Run()

	if m := c.next(t); string(m.Data) != `{"running":false}` {
		t.Errorf("Expected greeting, got %s", m.Data)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	h := New("test")
	startHub(t, h)

	c := newFakeConn()
	go newClient(h, c).Run()
	waitClients(t, h, 1)

	c.Close()
	waitClients(t, h, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := New("test")
	cancel := startHub(t, h)

	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		newClient(h, c).Run()
		close(done)
	}()
	waitClients(t, h, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after hub shutdown")
	}
}

func TestBroadcastWithoutRunDropsWhenFull(t *testing.T) {
	h := New("idle")
	for i := 0; i < broadcastBuffer+10; i++ {
		h.Broadcast(NewJSONMessage([]byte("{}")))
	}
	if len(h.broadcast) != broadcastBuffer {
		t.Errorf("Expected buffer capped at %d, got %d", broadcastBuffer, len(h.broadcast))
	}
}
