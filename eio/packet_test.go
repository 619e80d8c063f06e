package eio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket_Encode(t *testing.T) {
	assert.Equal(t, []byte("2"), Packet{Type: PacketPing}.Encode())
	assert.Equal(t, []byte("3probe"), Packet{Type: PacketPong, Data: []byte("probe")}.Encode())
	assert.Equal(t, []byte(`42["a"]`), Packet{Type: PacketMessage, Data: []byte(`2["a"]`)}.Encode())
}

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		in   string
		want Packet
	}{
		{in: "1", want: Packet{Type: PacketClose}},
		{in: "2probe", want: Packet{Type: PacketPing, Data: []byte("probe")}},
		{in: "3", want: Packet{Type: PacketPong}},
		{in: "40/admin,", want: Packet{Type: PacketMessage, Data: []byte("0/admin,")}},
		{in: "6", want: Packet{Type: PacketNoop}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := DecodePacket([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}

	for _, in := range []string{"", "7", "x"} {
		_, err := DecodePacket([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestPacketType_String(t *testing.T) {
	assert.Equal(t, "message", PacketMessage.String())
	assert.Equal(t, "unknown(9)", PacketType(9).String())
	assert.Equal(t, "closing", Closing.String())
}

func TestNewSID(t *testing.T) {
	a, b := NewSID(), NewSID()

	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}
