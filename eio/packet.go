package eio

import (
	"fmt"
	"strconv"
)

// PacketType is the Engine.IO v4 packet type carried as the first byte of a text message.
type PacketType byte

const (
	PacketOpen PacketType = iota
	PacketClose
	PacketPing
	PacketPong
	PacketMessage
	PacketUpgrade
	PacketNoop
)

func (t PacketType) String() string {
	switch t {
	case PacketOpen:
		return "open"
	case PacketClose:
		return "close"
	case PacketPing:
		return "ping"
	case PacketPong:
		return "pong"
	case PacketMessage:
		return "message"
	case PacketUpgrade:
		return "upgrade"
	case PacketNoop:
		return "noop"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

type Packet struct {
	Type PacketType
	Data []byte
}

func (p Packet) Encode() []byte {
	data := make([]byte, 0, len(p.Data)+1)
	data = append(data, byte('0'+p.Type))
	return append(data, p.Data...)
}

func DecodePacket(data []byte) (Packet, error) {
	if len(data) == 0 {
		return Packet{}, fmt.Errorf("eio: empty packet")
	}
	if data[0] < '0' || data[0] > '6' {
		return Packet{}, fmt.Errorf("eio: invalid packet type %q", data[0])
	}

	p := Packet{Type: PacketType(data[0] - '0')}
	if len(data) > 1 {
		p.Data = data[1:]
	}
	return p, nil
}

type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}
