package sio

import "errors"

var (
	ErrNilPacket  = errors.New("sio: packet must not be nil")
	ErrNilSocket  = errors.New("sio: socket must not be nil")
	ErrEmptyRoom  = errors.New("sio: room must not be empty")
	ErrEmptyEvent = errors.New("sio: event must not be empty")
	ErrAckSent    = errors.New("sio: acknowledgement already sent")
)
