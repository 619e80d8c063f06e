package sio

import (
	"fmt"

	"github.com/funcards/socket.io-server/eio"
	"github.com/funcards/socket.io-server/siop"
)

// CreateDataPacket builds an EVENT or ACK packet. The event name, when not
// empty, becomes the first element of the data array.
func CreateDataPacket(t siop.PacketType, event string, args ...any) (siop.Packet, error) {
	data := make([]any, 0, len(args)+1)

	if len(event) > 0 {
		data = append(data, event)
	}
	data = append(data, args...)

	if err := siop.ValidateData(data); err != nil {
		return siop.Packet{}, fmt.Errorf("sio: create %s packet: %w", t, err)
	}

	return siop.Packet{
		Type: t,
		Data: data,
	}, nil
}

func norm(nsp string) string {
	if len(nsp) == 0 {
		return "/"
	}
	if nsp[0] != '/' {
		return "/" + nsp
	}
	return nsp
}

func socketListener(fn func(sck Socket)) eio.Listener {
	return func(args ...any) {
		if len(args) == 0 {
			return
		}
		if sck, ok := args[0].(Socket); ok {
			fn(sck)
		}
	}
}

func unpackData(data any) []any {
	if arr, ok := data.([]any); ok {
		out := make([]any, len(arr))
		copy(out, arr)
		return out
	}
	return []any{}
}
