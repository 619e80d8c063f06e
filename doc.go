// Package sio is a Socket.IO v5 server core.
//
// A Server accepts transport connections from an Engine (see package eio), wraps
// each one in a Client and attaches it to the default namespace "/". Clients may
// join further namespaces by sending CONNECT packets; every attachment is a Socket
// with its own event listeners, rooms and acknowledgement callbacks.
//
//	engine := eio.NewServer(eio.DefaultConfig(), logger)
//	server := sio.NewServer(sio.DefaultConfig(), engine, nil, logger)
//
//	server.Namespace("/chat").OnConnection(func(sck sio.Socket) {
//		sck.On("message", func(args ...any) {
//			_ = sck.Broadcast([]string{"lobby"}, "message", args...)
//		})
//	})
//
//	server.NamespaceMatch(regexp.MustCompile(`/room-[0-9]+`)).OnConnection(func(sck sio.Socket) {
//		_ = sck.Send("welcome", sck.Namespace().Name())
//	})
//
// Room membership and broadcasting are delegated to an Adapter, one per namespace.
// MemoryAdapter keeps everything in process.
package sio
