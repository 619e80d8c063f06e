package main

import (
	"testing"

	sio "github.com/funcards/socket.io-server"
	"github.com/stretchr/testify/assert"
)

func TestSplitAck(t *testing.T) {
	var acked []any
	ack := sio.ReceivedByLocalAck(func(args ...any) error {
		acked = args
		return nil
	})

	args, got := splitAck([]any{"a", 1, ack})
	assert.Equal(t, []any{"a", 1}, args)
	assert.NotNil(t, got)

	assert.NoError(t, got("ok"))
	assert.Equal(t, []any{"ok"}, acked)

	args, got = splitAck([]any{"a"})
	assert.Equal(t, []any{"a"}, args)
	assert.Nil(t, got)

	args, got = splitAck(nil)
	assert.Empty(t, args)
	assert.Nil(t, got)
}

func TestStringArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringArgs([]any{"a", 1, nil, "b"}))
	assert.Empty(t, stringArgs(nil))
}

func TestReply(t *testing.T) {
	var acked []any
	ack := sio.ReceivedByLocalAck(func(args ...any) error {
		acked = args
		return nil
	})

	reply(ack, nil, []string{"r1"})
	assert.Equal(t, []any{map[string]any{"rooms": []any{"r1"}}}, acked)

	reply(ack, sio.ErrEmptyRoom, nil)
	assert.Equal(t, []any{map[string]any{"error": sio.ErrEmptyRoom.Error()}}, acked)

	reply(nil, nil, nil)
}
