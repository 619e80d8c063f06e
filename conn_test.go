package sio

import (
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/funcards/socket.io-server/eio"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
)

var _ eio.Socket = (*fakeConn)(nil)

type fakeConn struct {
	*eio.Emitter

	id      string
	state   *atomic.Int32
	query   url.Values
	headers http.Header

	mu     sync.Mutex
	frames []eio.Frame
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		Emitter: eio.NewEmitter(),
		id:      id,
		state:   atomic.NewInt32(int32(eio.Open)),
		query:   url.Values{"EIO": {"4"}},
		headers: http.Header{"User-Agent": {"test"}},
	}
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) ReadyState() eio.ReadyState {
	return eio.ReadyState(c.state.Load())
}

func (c *fakeConn) InitialQuery() url.Values {
	return c.query
}

func (c *fakeConn) InitialHeaders() http.Header {
	return c.headers
}

func (c *fakeConn) Send(frame eio.Frame) error {
	if c.ReadyState() != eio.Open {
		return eio.ErrSocketClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	if c.state.CompareAndSwap(int32(eio.Open), int32(eio.Closed)) {
		c.Fire(eio.TopicClose, "forced close")
	}
	return nil
}

func (c *fakeConn) receive(text string) {
	c.Fire(eio.TopicData, eio.TextFrame(text))
}

func (c *fakeConn) receiveBinary(data []byte) {
	c.Fire(eio.TopicData, eio.BinaryFrame(data))
}

// texts returns the text frames sent so far.
func (c *fakeConn) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, f := range c.frames {
		if !f.Binary {
			out = append(out, string(f.Data))
		}
	}
	return out
}

func (c *fakeConn) all() []eio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]eio.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = nil
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	return NewServer(Config{}, nil, nil, zaptest.NewLogger(t))
}

// accept attaches a fake connection and drops the "/" handshake frames.
func accept(t *testing.T, s *server, id string) (*fakeConn, *client) {
	t.Helper()

	conn := newFakeConn(id)
	c := s.accept(conn)
	conn.reset()

	return conn, c
}

// connectSocket attaches the client to nsp and returns the socket created for it.
func connectSocket(t *testing.T, s *server, conn *fakeConn, nsp string) *socket {
	t.Helper()

	var sck *socket
	off := s.Namespace(nsp).OnConnection(func(created Socket) {
		if created.Client().ID() == conn.ID() {
			sck = created.(*socket)
		}
	})
	defer off()

	conn.receive("0" + nsp + ",")
	if sck == nil {
		t.Fatalf("socket for %s was not created", nsp)
	}
	conn.reset()

	return sck
}
