package sio

import (
	"strconv"
	"sync"
	"testing"

	"github.com/funcards/socket.io-server/siop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastFixture struct {
	server  *server
	conns   map[string]*fakeConn
	sockets map[string]Socket
}

// newBroadcastFixture connects clients a, b and c to "/".
// a and b are in room "red", b and c in room "blue".
func newBroadcastFixture(t *testing.T) *broadcastFixture {
	t.Helper()

	f := &broadcastFixture{
		server:  newTestServer(t),
		conns:   make(map[string]*fakeConn),
		sockets: make(map[string]Socket),
	}
	for _, id := range []string{"a", "b", "c"} {
		conn, client := accept(t, f.server, id)
		f.conns[id] = conn
		f.sockets[id] = client.Sockets()["/"]
	}

	require.NoError(t, f.sockets["a"].JoinRoom("red"))
	require.NoError(t, f.sockets["b"].JoinRoom("red", "blue"))
	require.NoError(t, f.sockets["c"].JoinRoom("blue"))

	return f
}

func (f *broadcastFixture) received() map[string][]string {
	out := make(map[string][]string)
	for id, conn := range f.conns {
		if texts := conn.texts(); len(texts) > 0 {
			out[id] = texts
		}
	}
	return out
}

func TestMemoryAdapter_Broadcast(t *testing.T) {
	news := []string{`2["news",1]`}

	tests := []struct {
		name     string
		rooms    []string
		excluded []string
		want     map[string][]string
	}{
		{
			name:  "whole namespace",
			rooms: nil,
			want:  map[string][]string{"a": news, "b": news, "c": news},
		},
		{
			name:  "empty room list",
			rooms: []string{},
			want:  map[string][]string{},
		},
		{
			name:  "one room",
			rooms: []string{"red"},
			want:  map[string][]string{"a": news, "b": news},
		},
		{
			name:  "overlapping rooms deliver once",
			rooms: []string{"red", "blue", "red"},
			want:  map[string][]string{"a": news, "b": news, "c": news},
		},
		{
			name:     "excluded sockets",
			rooms:    []string{"red", "blue"},
			excluded: []string{"b"},
			want:     map[string][]string{"a": news, "c": news},
		},
		{
			name:     "whole namespace with exclusion",
			rooms:    nil,
			excluded: []string{"a", "c"},
			want:     map[string][]string{"b": news},
		},
		{
			name:  "own id room",
			rooms: []string{"c"},
			want:  map[string][]string{"c": news},
		},
		{
			name:  "unknown room",
			rooms: []string{"green"},
			want:  map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBroadcastFixture(t)
			packet, err := CreateDataPacket(siop.Event, "news", 1)
			require.NoError(t, err)

			adapter := f.server.Namespace("/").Adapter()
			require.NoError(t, adapter.Broadcast(&packet, tt.rooms, tt.excluded...))

			assert.Equal(t, tt.want, f.received())
		})
	}
}

func TestMemoryAdapter_BroadcastSkipsDisconnected(t *testing.T) {
	f := newBroadcastFixture(t)

	require.NoError(t, f.conns["b"].Close())

	require.NoError(t, f.server.Namespace("/").Broadcast([]string{"red", "blue"}, "news", 1))
	assert.Equal(t, map[string][]string{
		"a": {`2["news",1]`},
		"c": {`2["news",1]`},
	}, f.received())
}

func TestMemoryAdapter_Membership(t *testing.T) {
	f := newBroadcastFixture(t)
	adapter := f.server.Namespace("/").Adapter()

	assert.ElementsMatch(t, []Socket{f.sockets["a"], f.sockets["b"]}, adapter.ListClients("red"))
	assert.ElementsMatch(t, []string{"b", "red", "blue"}, adapter.ListClientRooms(f.sockets["b"]))
	assert.Empty(t, adapter.ListClients("green"))
	assert.Empty(t, adapter.ListClientRooms(nil))

	require.NoError(t, adapter.Add("red", f.sockets["a"]))
	assert.Len(t, adapter.ListClients("red"), 2)
	assert.ElementsMatch(t, []string{"a", "red"}, adapter.ListClientRooms(f.sockets["a"]))

	require.NoError(t, adapter.Remove("red", f.sockets["a"]))
	require.NoError(t, adapter.Remove("red", f.sockets["a"]))
	assert.Equal(t, []Socket{f.sockets["b"]}, adapter.ListClients("red"))
	assert.Equal(t, []string{"a"}, adapter.ListClientRooms(f.sockets["a"]))
}

func TestMemoryAdapter_Errors(t *testing.T) {
	f := newBroadcastFixture(t)
	adapter := f.server.Namespace("/").Adapter()

	assert.ErrorIs(t, adapter.Broadcast(nil, nil), ErrNilPacket)
	assert.ErrorIs(t, adapter.Add("", f.sockets["a"]), ErrEmptyRoom)
	assert.ErrorIs(t, adapter.Add("room", nil), ErrNilSocket)
	assert.ErrorIs(t, adapter.Remove("", f.sockets["a"]), ErrEmptyRoom)
	assert.ErrorIs(t, adapter.Remove("room", nil), ErrNilSocket)
}

func TestSocket_BroadcastExcludesSelf(t *testing.T) {
	f := newBroadcastFixture(t)

	require.NoError(t, f.sockets["b"].Broadcast(nil, "hello", "from b"))
	require.NoError(t, f.sockets["a"].Broadcast([]string{"red"}, "hi"))

	assert.Equal(t, map[string][]string{
		"a": {`2["hello","from b"]`},
		"b": {`2["hi"]`},
		"c": {`2["hello","from b"]`},
	}, f.received())

	assert.ErrorIs(t, f.sockets["a"].Broadcast(nil, ""), ErrEmptyEvent)
}

func TestNamespace_BroadcastExcluding(t *testing.T) {
	f := newBroadcastFixture(t)

	require.NoError(t, f.server.Namespace("/").BroadcastExcluding(nil, []string{"a"}, "news"))

	assert.Equal(t, map[string][]string{
		"b": {`2["news"]`},
		"c": {`2["news"]`},
	}, f.received())
}

func TestNamespace_BroadcastIsScoped(t *testing.T) {
	s := newTestServer(t)

	conn1, _ := accept(t, s, "c1")
	conn2, _ := accept(t, s, "c2")
	connectSocket(t, s, conn2, "/admin")

	require.NoError(t, s.Namespace("/admin").Broadcast(nil, "alert", map[string]any{"level": "high"}))

	assert.Empty(t, conn1.texts())
	assert.Equal(t, []string{`2/admin,["alert",{"level":"high"}]`}, conn2.texts())

	assert.ErrorIs(t, s.Namespace("/admin").Broadcast(nil, ""), ErrEmptyEvent)
}

func TestNamespaceGroup_Broadcast(t *testing.T) {
	s := newTestServer(t)
	group := s.NamespaceFunc(func(name string) bool { return len(name) > 5 && name[:5] == "/team" })

	conn1, _ := accept(t, s, "c1")
	conn2, _ := accept(t, s, "c2")
	conn1.receive("0/team-a,")
	conn2.receive("0/team-b,")
	conn1.reset()
	conn2.reset()
	require.Len(t, group.Children(), 2)

	require.NoError(t, group.Broadcast(nil, "standup"))

	assert.Equal(t, []string{`2/team-a,["standup"]`}, conn1.texts())
	assert.Equal(t, []string{`2/team-b,["standup"]`}, conn2.texts())

	assert.ErrorIs(t, group.Broadcast(nil, ""), ErrEmptyEvent)
	assert.ErrorIs(t, group.Broadcast(nil, "bad", make(chan int)), siop.ErrInvalidData)
}

func TestNamespace_NextID(t *testing.T) {
	s := newTestServer(t)
	nsp := s.namespace("/ids")

	assert.Equal(t, uint64(0), nsp.NextID())
	assert.Equal(t, uint64(1), nsp.NextID())
	assert.Equal(t, uint64(0), s.namespace("/other").NextID())
}

func socketIDs(sockets []Socket) []string {
	ids := make([]string, len(sockets))
	for i, sck := range sockets {
		ids[i] = sck.ID()
	}
	return ids
}

func TestMemoryAdapter_ConcurrentMembership(t *testing.T) {
	const workers, rounds = 8, 100

	s := newTestServer(t)
	nsp := s.Namespace("/")
	adapter := nsp.Adapter()

	conns := make([]*fakeConn, workers)
	sockets := make([]Socket, workers)
	for i := range sockets {
		conn, client := accept(t, s, "w"+strconv.Itoa(i))
		conns[i] = conn
		sockets[i] = client.Sockets()["/"]
		require.NoError(t, sockets[i].JoinRoom("all"))
	}

	var wg sync.WaitGroup
	for i, sck := range sockets {
		wg.Add(1)
		go func(i int, sck Socket) {
			defer wg.Done()

			for r := 0; r < rounds; r++ {
				room := "room-" + strconv.Itoa((i+r)%3)

				assert.NoError(t, sck.JoinRoom(room))
				// every socket is in "all", so each one gets this exactly once
				assert.NoError(t, nsp.Broadcast([]string{"all", room}, "tick"))
				assert.Contains(t, socketIDs(adapter.ListClients(room)), sck.ID())
				assert.Contains(t, adapter.ListClientRooms(sck), room)
				assert.NoError(t, sck.LeaveRoom(room))
			}
		}(i, sck)
	}
	wg.Wait()

	for i, conn := range conns {
		assert.Len(t, conn.texts(), workers*rounds, sockets[i].ID())
	}
	for _, sck := range sockets {
		assert.ElementsMatch(t, []string{sck.ID(), "all"}, adapter.ListClientRooms(sck))
		assert.ElementsMatch(t, []string{sck.ID(), "all"}, sck.Rooms())
	}
	for r := 0; r < 3; r++ {
		assert.Empty(t, adapter.ListClients("room-"+strconv.Itoa(r)))
	}
	assert.ElementsMatch(t, socketIDs(sockets), socketIDs(adapter.ListClients("all")))
}
