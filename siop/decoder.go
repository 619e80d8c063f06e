package siop

import (
	"fmt"
	"strconv"
)

// Decoder turns a stream of frames from one connection back into packets.
// It is not safe for concurrent use; frames must be added in arrival order.
type Decoder struct {
	onDecoded func(packet Packet) error
	pending   *Packet
	buffers   [][]byte
}

func NewDecoder(onDecoded func(packet Packet) error) *Decoder {
	return &Decoder{onDecoded: onDecoded}
}

func (d *Decoder) OnDecoded(fn func(packet Packet) error) {
	d.onDecoded = fn
}

// Add feeds one frame, either a string or a byte slice.
func (d *Decoder) Add(frame any) error {
	switch v := frame.(type) {
	case string:
		return d.AddText(v)
	case []byte:
		return d.AddBinary(v)
	}
	return fmt.Errorf("%w: unknown frame type %T", ErrMalformedPacket, frame)
}

func (d *Decoder) AddText(data string) error {
	if d.pending != nil {
		return ErrUnexpectedText
	}

	packet, err := decodeString(data)
	if err != nil {
		return err
	}

	if packet.Type.IsBinary() && packet.Attachments > 0 {
		d.pending = &packet
		d.buffers = make([][]byte, 0, packet.Attachments)
		return nil
	}
	return d.emit(packet)
}

func (d *Decoder) AddBinary(data []byte) error {
	if d.pending == nil {
		return ErrUnexpectedBinary
	}

	d.buffers = append(d.buffers, data)
	if len(d.buffers) < d.pending.Attachments {
		return nil
	}

	packet, buffers := *d.pending, d.buffers
	d.pending, d.buffers = nil, nil

	value, err := reconstruct(packet.Data, buffers)
	if err != nil {
		return err
	}
	packet.Data = value

	return d.emit(packet)
}

// Destroy drops a partially received packet.
func (d *Decoder) Destroy() {
	d.pending = nil
	d.buffers = nil
}

func (d *Decoder) emit(packet Packet) error {
	if d.onDecoded == nil {
		return nil
	}
	return d.onDecoded(packet)
}

func decodeString(str string) (Packet, error) {
	if len(str) == 0 {
		return Packet{}, fmt.Errorf("%w: empty frame", ErrMalformedPacket)
	}

	p := Packet{Nsp: "/"}
	p.Type = PacketType(str[0] - '0')
	if str[0] < '0' || !p.Type.Valid() {
		return Packet{}, fmt.Errorf("%w: unknown type %q", ErrMalformedPacket, str[0])
	}
	i := 1

	if p.Type.IsBinary() {
		start := i
		for i < len(str) && str[i] != '-' {
			i++
		}
		if i == len(str) || i == start {
			return Packet{}, fmt.Errorf("%w: missing attachment count", ErrMalformedPacket)
		}
		n, err := strconv.Atoi(str[start:i])
		if err != nil || n < 0 {
			return Packet{}, fmt.Errorf("%w: attachment count %q", ErrMalformedPacket, str[start:i])
		}
		p.Attachments = n
		i++
	}

	if i < len(str) && str[i] == '/' {
		start := i
		for i < len(str) && str[i] != ',' {
			i++
		}
		p.Nsp = str[start:i]
		if i < len(str) {
			i++
		}
	}

	if i < len(str) && isDigit(str[i]) {
		start := i
		for i < len(str) && isDigit(str[i]) {
			i++
		}
		id, err := strconv.ParseUint(str[start:i], 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("%w: ack id %q", ErrMalformedPacket, str[start:i])
		}
		p.ID = &id
	}

	if i < len(str) {
		var payload any
		if err := json.UnmarshalFromString(str[i:], &payload); err != nil {
			return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		p.Data = payload
	}

	if !isPayloadValid(p) {
		return Packet{}, fmt.Errorf("%w: invalid payload for %s", ErrMalformedPacket, p.Type)
	}

	return p, nil
}

func isPayloadValid(p Packet) bool {
	switch p.Type {
	case Connect:
		if p.Data == nil {
			return true
		}
		_, ok := p.Data.(map[string]any)
		return ok
	case Disconnect:
		return p.Data == nil
	case ConnectError:
		switch p.Data.(type) {
		case string, map[string]any:
			return true
		}
		return false
	case Event, BinaryEvent:
		data, ok := p.Data.([]any)
		if !ok || len(data) == 0 {
			return false
		}
		_, ok = data[0].(string)
		return ok
	case Ack, BinaryAck:
		_, ok := p.Data.([]any)
		return ok
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
