package siop

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode serializes p into one text frame followed by its binary attachments.
// EVENT and ACK packets carrying byte slices are sent as their binary variants.
func (p Packet) Encode() (string, [][]byte, error) {
	data, buffers := p.Data, [][]byte(nil)
	if HasBinary(p.Data) {
		data, buffers = deconstruct(p.Data)
		switch p.Type {
		case Event:
			p.Type = BinaryEvent
		case Ack:
			p.Type = BinaryAck
		}
	}

	var b strings.Builder
	b.WriteByte('0' + byte(p.Type))

	if p.Type.IsBinary() {
		b.WriteString(strconv.Itoa(len(buffers)))
		b.WriteByte('-')
	}

	if p.Nsp != "" && p.Nsp != "/" {
		b.WriteString(p.Nsp)
		b.WriteByte(',')
	}

	if p.ID != nil {
		b.WriteString(strconv.FormatUint(*p.ID, 10))
	}

	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		b.Write(payload)
	}

	return b.String(), buffers, nil
}
