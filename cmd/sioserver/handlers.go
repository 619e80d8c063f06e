package main

import (
	"regexp"

	sio "github.com/funcards/socket.io-server"
	"go.uber.org/zap"
)

func registerHandlers(server sio.Server, logger *zap.Logger) {
	server.Namespace("/").OnConnection(func(sck sio.Socket) {
		log := logger.With(zap.String("sid", sck.ID()))
		log.Info("connected", zap.Any("connect_data", sck.ConnectData()))

		sck.On("echo", func(args ...any) {
			args, ack := splitAck(args)
			if ack != nil {
				if err := ack(args...); err != nil {
					log.Warn("echo ack", zap.Error(err))
				}
				return
			}
			if err := sck.Send("echo", args...); err != nil {
				log.Warn("echo", zap.Error(err))
			}
		})

		sck.On("join", func(args ...any) {
			args, ack := splitAck(args)
			err := sck.JoinRoom(stringArgs(args)...)
			reply(ack, err, sck.Rooms())
		})

		sck.On("leave", func(args ...any) {
			args, ack := splitAck(args)
			err := sck.LeaveRoom(stringArgs(args)...)
			reply(ack, err, sck.Rooms())
		})

		sck.On("say", func(args ...any) {
			args, _ = splitAck(args)
			if len(args) < 1 {
				return
			}
			room, ok := args[0].(string)
			if !ok {
				return
			}
			if err := sck.Broadcast([]string{room}, "say", append([]any{sck.ID()}, args[1:]...)...); err != nil {
				log.Warn("say", zap.Error(err))
			}
		})

		sck.OnDisconnect(func(reason string) {
			log.Info("disconnected", zap.String("reason", reason))
		})
	})

	chats := server.NamespaceMatch(regexp.MustCompile(`/chat-[a-z0-9]+`))
	chats.OnConnection(func(sck sio.Socket) {
		_ = sck.Broadcast(nil, "joined", sck.ID())

		sck.On("message", func(args ...any) {
			args, _ = splitAck(args)
			if err := sck.Broadcast(nil, "message", append([]any{sck.ID()}, args...)...); err != nil {
				logger.Warn("chat message", zap.String("sid", sck.ID()), zap.Error(err))
			}
		})

		sck.OnDisconnect(func(string) {
			_ = sck.Namespace().Broadcast(nil, "left", sck.ID())
		})
	})
}

func splitAck(args []any) ([]any, sio.ReceivedByLocalAck) {
	if n := len(args); n > 0 {
		if ack, ok := args[n-1].(sio.ReceivedByLocalAck); ok {
			return args[:n-1], ack
		}
	}
	return args, nil
}

func stringArgs(args []any) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if s, ok := arg.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func reply(ack sio.ReceivedByLocalAck, err error, rooms []string) {
	if ack == nil {
		return
	}
	if err != nil {
		_ = ack(map[string]any{"error": err.Error()})
		return
	}
	data := make([]any, len(rooms))
	for i, room := range rooms {
		data[i] = room
	}
	_ = ack(map[string]any{"rooms": data})
}
