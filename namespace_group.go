package sio

import (
	"sort"
	"strconv"
	"sync"

	"github.com/funcards/socket.io-server/siop"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var groupCounter = atomic.NewUint32(0)

// NamespacePredicate decides whether a requested namespace name belongs to a group.
type NamespacePredicate func(name string) bool

// NamespaceGroup creates namespaces on demand for every name its predicate accepts.
// Listeners registered on the group are copied into each child when the child is
// created; later registrations on the group do not reach existing children.
type NamespaceGroup struct {
	*BaseNamespace

	match NamespacePredicate

	mu       sync.RWMutex
	children map[string]*NamespaceImpl
}

func newNamespaceGroup(server *server, match NamespacePredicate) *NamespaceGroup {
	name := "/_" + strconv.FormatUint(uint64(groupCounter.Inc()), 10)

	g := &NamespaceGroup{
		BaseNamespace: newBaseNamespace(name, server, server.log.Named("namespace_group").With(zap.String("nsp", name))),
		match:         match,
		children:      make(map[string]*NamespaceImpl),
	}
	g.adapter = server.adapterFactory(g)

	return g
}

// Children returns the namespaces created so far, ordered by name.
func (g *NamespaceGroup) Children() []Namespace {
	children := g.snapshot()

	data := make([]Namespace, len(children))
	for i, nsp := range children {
		data[i] = nsp
	}
	return data
}

// Broadcast sends an event through every child namespace.
func (g *NamespaceGroup) Broadcast(rooms []string, event string, args ...any) error {
	return g.BroadcastExcluding(rooms, nil, event, args...)
}

func (g *NamespaceGroup) BroadcastExcluding(rooms, excluded []string, event string, args ...any) error {
	if len(event) == 0 {
		return ErrEmptyEvent
	}
	if _, err := CreateDataPacket(siop.Event, event, args...); err != nil {
		return err
	}

	var err error
	for _, nsp := range g.snapshot() {
		err = multierr.Append(err, nsp.BroadcastExcluding(rooms, excluded, event, args...))
	}
	return err
}

// ConnectedSockets returns the connected sockets of all children keyed by id.
func (g *NamespaceGroup) ConnectedSockets() map[string]Socket {
	data := make(map[string]Socket)
	for _, nsp := range g.snapshot() {
		for sid, sck := range nsp.ConnectedSockets() {
			data[sid] = sck
		}
	}
	return data
}

func (g *NamespaceGroup) Socket(sid string) (Socket, bool) {
	for _, nsp := range g.snapshot() {
		if sck, ok := nsp.Socket(sid); ok {
			return sck, true
		}
	}
	return nil, false
}

func (g *NamespaceGroup) snapshot() []*NamespaceImpl {
	g.mu.RLock()
	data := make([]*NamespaceImpl, 0, len(g.children))
	for _, nsp := range g.children {
		data = append(data, nsp)
	}
	g.mu.RUnlock()

	sort.Slice(data, func(i, j int) bool {
		return data[i].Name() < data[j].Name()
	})
	return data
}

func (g *NamespaceGroup) createChild(name string) *NamespaceImpl {
	nsp := newNamespace(name, g.server)

	for _, topic := range []string{TopicConnect, TopicConnection} {
		for _, l := range g.Listeners(topic) {
			nsp.On(topic, l)
		}
	}

	g.mu.Lock()
	g.children[name] = nsp
	g.mu.Unlock()

	g.log.Debug("namespace group new child", zap.String("child", name))

	return nsp
}
