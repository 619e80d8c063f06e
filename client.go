package sio

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/funcards/socket.io-server/eio"
	"github.com/funcards/socket.io-server/siop"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var _ Client = (*client)(nil)

// Client is one transport connection multiplexing sockets for several namespaces.
type Client interface {
	ID() string
	Conn() eio.Socket
	InitialQuery() url.Values
	InitialHeaders() http.Header
	Sockets() map[string]Socket
	Disconnect() error
}

type client struct {
	server  *server
	conn    eio.Socket
	decoder *siop.Decoder
	log     *zap.Logger
	closed  *atomic.Bool

	tmu           sync.Mutex
	timeoutFuture *time.Timer

	mu               sync.RWMutex
	sockets          map[string]*socket
	namespaceSockets map[string]*socket
	unbind           []func()
}

func newClient(server *server, conn eio.Socket) *client {
	c := &client{
		server:           server,
		conn:             conn,
		log:              server.log.Named("client").With(zap.String("client_id", conn.ID())),
		closed:           atomic.NewBool(false),
		sockets:          make(map[string]*socket),
		namespaceSockets: make(map[string]*socket),
	}
	c.decoder = siop.NewDecoder(c.onDecoded)
	c.setup()

	return c
}

func (c *client) ID() string {
	return c.conn.ID()
}

func (c *client) Conn() eio.Socket {
	return c.conn
}

func (c *client) InitialQuery() url.Values {
	return c.conn.InitialQuery()
}

func (c *client) InitialHeaders() http.Header {
	return c.conn.InitialHeaders()
}

// Sockets returns a snapshot of the attached sockets keyed by namespace.
func (c *client) Sockets() map[string]Socket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data := make(map[string]Socket, len(c.namespaceSockets))
	for nsp, sck := range c.namespaceSockets {
		data[nsp] = sck
	}
	return data
}

// Disconnect detaches every socket, telling the peer about each one, then closes the transport.
func (c *client) Disconnect() error {
	for _, sck := range c.snapshot() {
		if err := sck.Disconnect(false); err != nil {
			c.log.Debug("client disconnect socket", zap.String("sid", sck.ID()), zap.Error(err))
		}
	}
	return c.close()
}

func (c *client) sendPacket(packet siop.Packet) error {
	if c.conn.ReadyState() != eio.Open {
		c.log.Debug("client skip packet, transport is not open", zap.Stringer("packet", packet))
		return nil
	}

	text, buffers, err := packet.Encode()
	if err != nil {
		return err
	}

	if err = c.conn.Send(eio.TextFrame(text)); err != nil {
		return err
	}
	for _, buf := range buffers {
		if err = c.conn.Send(eio.BinaryFrame(buf)); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) connect(name string, data any) {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		if data == nil {
			if query, err := url.ParseQuery(name[i+1:]); err == nil {
				data = query
			}
		}
		name = name[:i]
	}
	name = norm(name)

	c.mu.RLock()
	sck, ok := c.namespaceSockets[name]
	c.mu.RUnlock()

	if ok {
		c.log.Debug("client namespace already connected", zap.String("nsp", name))
		sck.sendConnectAck()
		return
	}

	if nsp, ok := c.server.checkNamespace(name); ok {
		c.doConnect(nsp, data)
		return
	}

	c.log.Debug("client invalid namespace", zap.String("nsp", name))

	err := c.sendPacket(siop.Packet{
		Type: siop.ConnectError,
		Nsp:  name,
		Data: map[string]any{"message": "Invalid namespace"},
	})
	if err != nil {
		c.log.Warn("client connect error packet", zap.Error(err))
	}
}

func (c *client) doConnect(nsp *NamespaceImpl, data any) {
	sck := nsp.add(c, data)
	if !sck.Connected() {
		return
	}

	c.mu.Lock()
	c.sockets[sck.ID()] = sck
	c.namespaceSockets[nsp.Name()] = sck
	c.mu.Unlock()

	if c.closed.Load() {
		sck.onClose(ReasonForcedServerClose)
		return
	}

	c.stopTimeout()
}

func (c *client) remove(sck *socket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sockets[sck.ID()]; ok {
		delete(c.sockets, sck.ID())
		delete(c.namespaceSockets, sck.Namespace().Name())
	}
}

func (c *client) close() error {
	if c.conn.ReadyState() != eio.Open {
		return nil
	}

	c.onClose(ReasonForcedServerClose)
	return c.conn.Close()
}

func (c *client) setup() {
	c.unbind = append(c.unbind,
		c.conn.On(eio.TopicData, c.onData),
		c.conn.On(eio.TopicError, func(args ...any) {
			msg := "transport error"
			if len(args) > 0 {
				if s, ok := args[0].(string); ok {
					msg = s
				}
			}
			c.onError(msg)
		}),
		c.conn.On(eio.TopicClose, func(args ...any) {
			reason := "transport close"
			if len(args) > 0 {
				if s, ok := args[0].(string); ok {
					reason = s
				}
			}
			c.onClose(reason)
		}),
	)

	if timeout := c.server.cfg.ConnectionTimeout; timeout > 0 {
		c.tmu.Lock()
		c.timeoutFuture = time.AfterFunc(timeout, c.connectionTimeout)
		c.tmu.Unlock()
	}
}

func (c *client) destroy() {
	c.mu.Lock()
	unbind := c.unbind
	c.unbind = nil
	c.mu.Unlock()

	for _, off := range unbind {
		off()
	}

	c.stopTimeout()
}

func (c *client) stopTimeout() {
	c.tmu.Lock()
	defer c.tmu.Unlock()

	if c.timeoutFuture != nil {
		c.timeoutFuture.Stop()
		c.timeoutFuture = nil
	}
}

func (c *client) connectionTimeout() {
	c.mu.RLock()
	attached := len(c.namespaceSockets)
	c.mu.RUnlock()

	if attached > 0 {
		return
	}

	c.log.Debug("client connection timeout")
	if err := c.close(); err != nil {
		c.log.Warn("client close on timeout", zap.Error(err))
	}
}

func (c *client) onData(args ...any) {
	if len(args) == 0 {
		return
	}
	frame, ok := args[0].(eio.Frame)
	if !ok || c.closed.Load() {
		return
	}

	var err error
	if frame.Binary {
		err = c.decoder.AddBinary(frame.Data)
	} else {
		err = c.decoder.AddText(string(frame.Data))
	}

	if err != nil {
		c.log.Debug("client decode", zap.Error(err))
		c.onError(err.Error())
	}
	if c.closed.Load() {
		c.decoder.Destroy()
	}
}

func (c *client) onDecoded(packet siop.Packet) error {
	if packet.Type == siop.Connect {
		c.connect(packet.Nsp, packet.Data)
		return nil
	}

	c.mu.RLock()
	sck, ok := c.namespaceSockets[packet.Nsp]
	c.mu.RUnlock()

	if !ok {
		c.log.Debug("client packet for unattached namespace", zap.Stringer("packet", packet))
		return nil
	}

	sck.onPacket(packet)
	return nil
}

func (c *client) onError(message string) {
	for _, sck := range c.snapshot() {
		sck.onError(message)
	}

	c.onClose(ReasonTransportError)
	if err := c.conn.Close(); err != nil {
		c.log.Debug("client close transport", zap.Error(err))
	}
}

func (c *client) onClose(reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.log.Debug("client close", zap.String("reason", reason))

	c.destroy()

	for _, sck := range c.snapshot() {
		sck.onClose(reason)
	}

	c.mu.Lock()
	c.sockets = make(map[string]*socket)
	c.namespaceSockets = make(map[string]*socket)
	c.mu.Unlock()

	c.server.removeClient(c)
}

func (c *client) snapshot() []*socket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data := make([]*socket, 0, len(c.sockets))
	for _, sck := range c.sockets {
		data = append(data, sck)
	}
	return data
}
