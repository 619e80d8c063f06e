package sio

import (
	"net/http"
	"net/url"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/funcards/socket.io-server/eio"
	"github.com/funcards/socket.io-server/siop"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// TopicDisconnecting is fired with the reason while the socket is still in its rooms.
	TopicDisconnecting = "disconnecting"
	// TopicDisconnect is fired with the reason once the socket has been removed everywhere.
	TopicDisconnect = "disconnect"
	// TopicError is fired with a message string, only when someone listens to it.
	TopicError = "error"
)

const (
	ReasonServerNamespaceDisconnect = "server namespace disconnect"
	ReasonClientNamespaceDisconnect = "client namespace disconnect"
	ReasonForcedServerClose         = "forced server close"
	ReasonTransportError            = "transport error"
)

const (
	statePending int32 = iota
	stateConnected
	stateDisconnected
)

type (
	// ReceivedByRemoteAck is called with the client's reply to SendWithAck.
	ReceivedByRemoteAck func(args ...any)
	// ReceivedByLocalAck is appended as the last argument of an event the client
	// sent with an ack id. It may be called once.
	ReceivedByLocalAck func(args ...any) error
	// AnyListener receives every incoming event.
	AnyListener func(event string, args ...any)
)

var _ Socket = (*socket)(nil)

// Socket is a client's attachment to one namespace.
type Socket interface {
	eio.EventEmitter

	ID() string
	Namespace() Namespace
	Client() Client
	ConnectData() any
	Query() url.Values
	Headers() http.Header
	Connected() bool
	Rooms() []string
	OnDisconnect(fn func(reason string)) func()
	OnAny(l AnyListener)
	Disconnect(closeClient bool) error
	Broadcast(rooms []string, event string, args ...any) error
	Send(event string, args ...any) error
	SendWithAck(event string, ack ReceivedByRemoteAck, args ...any) error
	SendPacket(packet siop.Packet) error
	JoinRoom(rooms ...string) error
	LeaveRoom(rooms ...string) error
	LeaveAllRooms()
}

type socket struct {
	*eio.Emitter

	id      string
	nsp     *NamespaceImpl
	client  *client
	adapter Adapter
	data    any
	log     *zap.Logger
	state   *atomic.Int32

	rmu   sync.Mutex
	rooms mapset.Set[string]

	acks sync.Map

	amu          sync.RWMutex
	anyListeners []AnyListener
}

func newSocket(nsp *NamespaceImpl, c *client, data any) *socket {
	id := c.ID()
	if nsp.Name() != "/" {
		id = nsp.Name() + "#" + id
	}

	return &socket{
		Emitter: eio.NewEmitter(),
		id:      id,
		nsp:     nsp,
		client:  c,
		adapter: nsp.Adapter(),
		data:    data,
		log:     nsp.log.Named("socket").With(zap.String("sid", id)),
		state:   atomic.NewInt32(statePending),
		rooms:   mapset.NewThreadUnsafeSet[string](),
	}
}

func (s *socket) ID() string {
	return s.id
}

func (s *socket) Namespace() Namespace {
	return s.nsp
}

func (s *socket) Client() Client {
	return s.client
}

// ConnectData is the payload the client sent with its CONNECT packet.
func (s *socket) ConnectData() any {
	return s.data
}

func (s *socket) Query() url.Values {
	return s.client.InitialQuery()
}

func (s *socket) Headers() http.Header {
	return s.client.InitialHeaders()
}

func (s *socket) Connected() bool {
	return s.state.Load() == stateConnected
}

func (s *socket) Rooms() []string {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	return s.rooms.ToSlice()
}

func (s *socket) OnDisconnect(fn func(reason string)) func() {
	return s.On(TopicDisconnect, func(args ...any) {
		if len(args) == 0 {
			return
		}
		if reason, ok := args[0].(string); ok {
			fn(reason)
		}
	})
}

// OnAny registers a listener that sees every incoming event after the per-event listeners.
func (s *socket) OnAny(l AnyListener) {
	s.amu.Lock()
	defer s.amu.Unlock()

	s.anyListeners = append(s.anyListeners, l)
}

// Disconnect detaches the socket from its namespace. When closeClient is true the
// whole connection is closed, taking every other namespace of the client with it.
func (s *socket) Disconnect(closeClient bool) error {
	if closeClient {
		if !s.Connected() {
			return nil
		}
		return s.client.Disconnect()
	}

	if !s.state.CompareAndSwap(stateConnected, stateDisconnected) {
		return nil
	}

	if err := s.SendPacket(siop.Packet{Type: siop.Disconnect}); err != nil {
		s.log.Debug("socket disconnect packet", zap.Error(err))
	}
	s.cleanup(ReasonServerNamespaceDisconnect)

	return nil
}

// Broadcast sends an event to the rooms, or to the whole namespace when rooms is nil,
// skipping this socket.
func (s *socket) Broadcast(rooms []string, event string, args ...any) error {
	return s.nsp.BroadcastExcluding(rooms, []string{s.id}, event, args...)
}

func (s *socket) Send(event string, args ...any) error {
	return s.SendWithAck(event, nil, args...)
}

func (s *socket) SendWithAck(event string, ack ReceivedByRemoteAck, args ...any) error {
	if len(event) == 0 {
		return ErrEmptyEvent
	}

	packet, err := CreateDataPacket(siop.Event, event, args...)
	if err != nil {
		return err
	}

	if ack == nil {
		return s.SendPacket(packet)
	}

	id := s.nsp.NextID()
	packet = packet.WithID(id)
	s.acks.Store(id, ack)

	if err = s.SendPacket(packet); err != nil {
		s.acks.Delete(id)
		return err
	}
	return nil
}

func (s *socket) JoinRoom(rooms ...string) error {
	for _, room := range rooms {
		if len(room) == 0 {
			return ErrEmptyRoom
		}
	}

	s.rmu.Lock()
	defer s.rmu.Unlock()

	for _, room := range rooms {
		if s.rooms.Contains(room) {
			continue
		}
		if err := s.adapter.Add(room, s); err != nil {
			return err
		}
		s.rooms.Add(room)
	}
	return nil
}

func (s *socket) LeaveRoom(rooms ...string) error {
	for _, room := range rooms {
		if len(room) == 0 {
			return ErrEmptyRoom
		}
	}

	s.rmu.Lock()
	defer s.rmu.Unlock()

	for _, room := range rooms {
		if !s.rooms.Contains(room) {
			continue
		}
		if err := s.adapter.Remove(room, s); err != nil {
			return err
		}
		s.rooms.Remove(room)
	}
	return nil
}

func (s *socket) LeaveAllRooms() {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	for _, room := range s.rooms.ToSlice() {
		if err := s.adapter.Remove(room, s); err != nil {
			s.log.Warn("socket leave room", zap.String("room", room), zap.Error(err))
		}
	}
	s.rooms.Clear()
}

// SendPacket writes packet to the client, addressed to this socket's namespace.
func (s *socket) SendPacket(packet siop.Packet) error {
	packet.Nsp = s.nsp.Name()
	return s.client.sendPacket(packet)
}

func (s *socket) sendConnectAck() {
	err := s.SendPacket(siop.Packet{
		Type: siop.Connect,
		Data: map[string]any{"sid": s.id},
	})
	if err != nil {
		s.log.Warn("socket connect ack", zap.Error(err))
	}
}

func (s *socket) onPacket(packet siop.Packet) {
	s.log.Debug("socket packet", zap.Stringer("packet", packet))

	switch packet.Type {
	case siop.Event, siop.BinaryEvent:
		s.onEvent(packet)
	case siop.Ack, siop.BinaryAck:
		s.onAck(packet)
	case siop.Disconnect:
		s.onClose(ReasonClientNamespaceDisconnect)
	case siop.ConnectError:
		s.onError(connectErrorMessage(packet.Data))
	}
}

func (s *socket) onEvent(packet siop.Packet) {
	args := unpackData(packet.Data)
	if len(args) == 0 {
		return
	}
	event, ok := args[0].(string)
	if !ok {
		return
	}
	args = args[1:]

	if packet.ID != nil {
		args = append(args, s.localAck(*packet.ID))
	}

	s.Fire(event, args...)

	s.amu.RLock()
	listeners := make([]AnyListener, len(s.anyListeners))
	copy(listeners, s.anyListeners)
	s.amu.RUnlock()

	for _, l := range listeners {
		l(event, args...)
	}
}

func (s *socket) localAck(id uint64) ReceivedByLocalAck {
	sent := atomic.NewBool(false)

	return func(args ...any) error {
		if !sent.CompareAndSwap(false, true) {
			return ErrAckSent
		}

		packet, err := CreateDataPacket(siop.Ack, "", args...)
		if err != nil {
			sent.Store(false)
			return err
		}
		return s.SendPacket(packet.WithID(id))
	}
}

func (s *socket) onAck(packet siop.Packet) {
	if packet.ID == nil {
		return
	}

	if fn, ok := s.acks.LoadAndDelete(*packet.ID); ok {
		fn.(ReceivedByRemoteAck)(unpackData(packet.Data)...)
	} else {
		s.log.Debug("socket unknown ack", zap.Uint64("ack_id", *packet.ID))
	}
}

func (s *socket) onError(message string) {
	if s.HasListeners(TopicError) {
		s.Fire(TopicError, message)
	}
}

func (s *socket) onConnect() {
	if !s.state.CompareAndSwap(statePending, stateConnected) {
		return
	}

	s.nsp.addConnected(s)
	if err := s.JoinRoom(s.id); err != nil {
		s.log.Warn("socket join own room", zap.Error(err))
	}
	s.sendConnectAck()
}

func (s *socket) onClose(reason string) {
	if !s.state.CompareAndSwap(stateConnected, stateDisconnected) {
		return
	}
	s.cleanup(reason)
}

// cleanup runs once, after the state moved to disconnected.
func (s *socket) cleanup(reason string) {
	s.log.Debug("socket close", zap.String("reason", reason))

	s.Fire(TopicDisconnecting, reason)

	s.LeaveAllRooms()
	s.nsp.remove(s)
	s.nsp.removeConnected(s)
	s.client.remove(s)

	s.acks.Range(func(key, _ any) bool {
		s.acks.Delete(key)
		return true
	})

	s.Fire(TopicDisconnect, reason)
}

func connectErrorMessage(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return "connect error"
}
