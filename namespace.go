package sio

import (
	"sync"

	"github.com/funcards/socket.io-server/eio"
	"github.com/funcards/socket.io-server/siop"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	_ Namespace = (*NamespaceImpl)(nil)
	_ Namespace = (*NamespaceGroup)(nil)
)

const (
	// TopicConnect is fired on a Namespace with the new Socket, before TopicConnection.
	TopicConnect = "connect"
	// TopicConnection is fired on a Namespace with the new Socket.
	TopicConnection = "connection"
)

type (
	// Namespace is either a static namespace or a NamespaceGroup of dynamic ones.
	Namespace interface {
		eio.EventEmitter

		Name() string
		Server() Server
		Adapter() Adapter
		ConnectedSockets() map[string]Socket
		Socket(sid string) (Socket, bool)
		Broadcast(rooms []string, event string, args ...any) error
		BroadcastExcluding(rooms, excluded []string, event string, args ...any) error
		OnConnect(fn func(sck Socket)) func()
		OnConnection(fn func(sck Socket)) func()
	}

	BaseNamespace struct {
		*eio.Emitter

		name    string
		server  *server
		adapter Adapter
		log     *zap.Logger
	}

	NamespaceImpl struct {
		*BaseNamespace

		ackID *atomic.Uint64

		smu     sync.RWMutex
		sockets map[string]*socket

		cmu              sync.RWMutex
		connectedSockets map[string]Socket
	}
)

func newBaseNamespace(name string, server *server, logger *zap.Logger) *BaseNamespace {
	return &BaseNamespace{
		Emitter: eio.NewEmitter(),
		name:    name,
		server:  server,
		log:     logger,
	}
}

func (n *BaseNamespace) Name() string {
	return n.name
}

func (n *BaseNamespace) Server() Server {
	return n.server
}

func (n *BaseNamespace) Adapter() Adapter {
	return n.adapter
}

func (n *BaseNamespace) OnConnect(fn func(sck Socket)) func() {
	return n.On(TopicConnect, socketListener(fn))
}

func (n *BaseNamespace) OnConnection(fn func(sck Socket)) func() {
	return n.On(TopicConnection, socketListener(fn))
}

func newNamespace(name string, server *server) *NamespaceImpl {
	n := &NamespaceImpl{
		BaseNamespace:    newBaseNamespace(name, server, server.log.Named("namespace").With(zap.String("nsp", name))),
		ackID:            atomic.NewUint64(0),
		sockets:          make(map[string]*socket),
		connectedSockets: make(map[string]Socket),
	}
	n.adapter = server.adapterFactory(n)

	return n
}

// NextID returns a fresh acknowledgement id, unique within the namespace.
func (n *NamespaceImpl) NextID() uint64 {
	return n.ackID.Inc() - 1
}

// Broadcast sends an event to the given rooms, or to every connected socket when rooms is nil.
func (n *NamespaceImpl) Broadcast(rooms []string, event string, args ...any) error {
	return n.BroadcastExcluding(rooms, nil, event, args...)
}

// BroadcastExcluding is Broadcast that skips the sockets whose id is in excluded.
func (n *NamespaceImpl) BroadcastExcluding(rooms, excluded []string, event string, args ...any) error {
	if len(event) == 0 {
		return ErrEmptyEvent
	}

	packet, err := CreateDataPacket(siop.Event, event, args...)
	if err != nil {
		return err
	}
	packet.Nsp = n.name

	return n.adapter.Broadcast(&packet, rooms, excluded...)
}

// ConnectedSockets returns a snapshot of the connected sockets keyed by id.
func (n *NamespaceImpl) ConnectedSockets() map[string]Socket {
	n.cmu.RLock()
	defer n.cmu.RUnlock()

	data := make(map[string]Socket, len(n.connectedSockets))
	for sid, sck := range n.connectedSockets {
		data[sid] = sck
	}
	return data
}

func (n *NamespaceImpl) Socket(sid string) (Socket, bool) {
	n.smu.RLock()
	defer n.smu.RUnlock()

	if sck, ok := n.sockets[sid]; ok {
		return sck, true
	}
	return nil, false
}

func (n *NamespaceImpl) add(client *client, data any) *socket {
	sck := newSocket(n, client, data)

	if client.conn.ReadyState() != eio.Open {
		n.log.Debug("namespace skip socket, transport is not open", zap.String("sid", sck.ID()))
		return sck
	}

	n.smu.Lock()
	n.sockets[sck.ID()] = sck
	n.smu.Unlock()

	n.log.Debug("namespace new connection", zap.String("sid", sck.ID()), zap.Any("connect_data", data))

	sck.onConnect()

	n.Fire(TopicConnect, sck)
	n.Fire(TopicConnection, sck)

	return sck
}

func (n *NamespaceImpl) remove(sck *socket) {
	n.smu.Lock()
	defer n.smu.Unlock()

	delete(n.sockets, sck.ID())
}

func (n *NamespaceImpl) addConnected(sck *socket) {
	n.cmu.Lock()
	defer n.cmu.Unlock()

	n.connectedSockets[sck.ID()] = sck
}

func (n *NamespaceImpl) removeConnected(sck *socket) {
	n.cmu.Lock()
	defer n.cmu.Unlock()

	delete(n.connectedSockets, sck.ID())
}
