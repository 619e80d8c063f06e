package sio

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/funcards/socket.io-server/siop"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ Adapter = (*MemoryAdapter)(nil)

// AdapterFactory creates the Adapter of a namespace. It is called once per namespace.
type AdapterFactory func(nsp Namespace) Adapter

// Adapter tracks room membership and delivers broadcasts.
type Adapter interface {
	// Broadcast sends packet to the sockets of rooms, or to every connected
	// socket of the namespace when rooms is nil. Sockets whose id is in
	// excluded are skipped, and each target receives the packet once.
	Broadcast(packet *siop.Packet, rooms []string, excluded ...string) error
	Add(room string, sck Socket) error
	Remove(room string, sck Socket) error
	ListClients(room string) []Socket
	ListClientRooms(sck Socket) []string
}

func MemoryAdapterFactory(nsp Namespace) Adapter {
	logger := nsp.Server().Logger().Named("adapter").With(zap.String("nsp", nsp.Name()))
	return NewMemoryAdapter(nsp, logger)
}

// MemoryAdapter keeps both directions of the membership index behind one lock,
// so a socket is in a room's set iff the room is in the socket's set.
type MemoryAdapter struct {
	nsp Namespace
	log *zap.Logger

	mu          sync.RWMutex
	roomSockets map[string]mapset.Set[Socket]
	socketRooms map[string]mapset.Set[string]
}

func NewMemoryAdapter(nsp Namespace, logger *zap.Logger) *MemoryAdapter {
	return &MemoryAdapter{
		nsp:         nsp,
		log:         logger,
		roomSockets: make(map[string]mapset.Set[Socket]),
		socketRooms: make(map[string]mapset.Set[string]),
	}
}

func (a *MemoryAdapter) Broadcast(packet *siop.Packet, rooms []string, excluded ...string) error {
	if packet == nil {
		return ErrNilPacket
	}

	sidExcluded := mapset.NewThreadUnsafeSet(excluded...)
	connected := a.nsp.ConnectedSockets()
	targets := make([]Socket, 0, len(connected))

	if rooms == nil {
		for sid, sck := range connected {
			if !sidExcluded.Contains(sid) {
				targets = append(targets, sck)
			}
		}
	} else {
		sent := mapset.NewThreadUnsafeSet[string]()

		a.mu.RLock()
		for _, room := range rooms {
			sockets, ok := a.roomSockets[room]
			if !ok {
				continue
			}
			for _, sck := range sockets.ToSlice() {
				sid := sck.ID()
				if sidExcluded.Contains(sid) || sent.Contains(sid) {
					continue
				}
				if _, ok = connected[sid]; ok {
					sent.Add(sid)
					targets = append(targets, sck)
				}
			}
		}
		a.mu.RUnlock()
	}

	a.log.Debug("adapter broadcast", zap.Stringer("packet", packet), zap.Strings("rooms", rooms), zap.Int("targets", len(targets)))

	var err error
	for _, sck := range targets {
		err = multierr.Append(err, sck.SendPacket(*packet))
	}
	if err != nil {
		a.log.Warn("adapter broadcast partially failed", zap.Error(err))
	}

	return nil
}

func (a *MemoryAdapter) Add(room string, sck Socket) error {
	if len(room) == 0 {
		return ErrEmptyRoom
	}
	if sck == nil {
		return ErrNilSocket
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	sockets, ok := a.roomSockets[room]
	if !ok {
		sockets = mapset.NewThreadUnsafeSet[Socket]()
		a.roomSockets[room] = sockets
	}
	sockets.Add(sck)

	rooms, ok := a.socketRooms[sck.ID()]
	if !ok {
		rooms = mapset.NewThreadUnsafeSet[string]()
		a.socketRooms[sck.ID()] = rooms
	}
	rooms.Add(room)

	return nil
}

func (a *MemoryAdapter) Remove(room string, sck Socket) error {
	if len(room) == 0 {
		return ErrEmptyRoom
	}
	if sck == nil {
		return ErrNilSocket
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if sockets, ok := a.roomSockets[room]; ok {
		sockets.Remove(sck)
		if sockets.Cardinality() == 0 {
			delete(a.roomSockets, room)
		}
	}
	if rooms, ok := a.socketRooms[sck.ID()]; ok {
		rooms.Remove(room)
		if rooms.Cardinality() == 0 {
			delete(a.socketRooms, sck.ID())
		}
	}

	return nil
}

func (a *MemoryAdapter) ListClients(room string) []Socket {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if sockets, ok := a.roomSockets[room]; ok {
		return sockets.ToSlice()
	}
	return []Socket{}
}

func (a *MemoryAdapter) ListClientRooms(sck Socket) []string {
	if sck == nil {
		return []string{}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if rooms, ok := a.socketRooms[sck.ID()]; ok {
		return rooms.ToSlice()
	}
	return []string{}
}
