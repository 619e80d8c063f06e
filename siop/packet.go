// Package siop implements the Socket.IO v5 packet format: text frame
// encoding and decoding, and the extraction of binary attachments into
// separate frames.
package siop

import (
	"errors"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	ErrMalformedPacket  = errors.New("siop: malformed packet")
	ErrInvalidData      = errors.New("siop: invalid packet data")
	ErrUnexpectedBinary = errors.New("siop: binary frame without pending packet")
	ErrUnexpectedText   = errors.New("siop: text frame while awaiting attachments")
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

type PacketType byte

const (
	Connect PacketType = iota
	Disconnect
	Event
	Ack
	ConnectError
	BinaryEvent
	BinaryAck
)

func (t PacketType) Valid() bool {
	return t <= BinaryAck
}

func (t PacketType) IsBinary() bool {
	return t == BinaryEvent || t == BinaryAck
}

func (t PacketType) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case Disconnect:
		return "DISCONNECT"
	case Event:
		return "EVENT"
	case Ack:
		return "ACK"
	case ConnectError:
		return "CONNECT_ERROR"
	case BinaryEvent:
		return "BINARY_EVENT"
	case BinaryAck:
		return "BINARY_ACK"
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// Packet is one logical Socket.IO packet. A nil ID means the packet carries
// no acknowledgement id, which is distinct from an id of zero.
type Packet struct {
	Type        PacketType
	Nsp         string
	ID          *uint64
	Data        any
	Attachments int
}

// WithID returns a copy of p carrying the acknowledgement id.
func (p Packet) WithID(id uint64) Packet {
	p.ID = &id
	return p
}

func (p Packet) String() string {
	var b strings.Builder
	b.WriteString(p.Type.String())
	b.WriteByte(' ')
	b.WriteString(p.Nsp)
	if p.ID != nil {
		b.WriteString(" #")
		b.WriteString(strconv.FormatUint(*p.ID, 10))
	}
	return b.String()
}
