package eio

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	// TopicConnection is emitted by Server with the new Socket as the only argument.
	TopicConnection = "connection"
	// TopicData carries one Frame.
	TopicData = "data"
	// TopicError carries an error message string.
	TopicError = "error"
	// TopicClose carries the close reason string.
	TopicClose = "close"
)

var (
	ErrSocketClosed = errors.New("eio: socket closed")
	ErrSlowClient   = errors.New("eio: slow client")
)

type ReadyState int32

const (
	Opening ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Frame is one opaque message delivered by the transport.
type Frame struct {
	Data   []byte
	Binary bool
}

func TextFrame(s string) Frame {
	return Frame{Data: []byte(s)}
}

func BinaryFrame(b []byte) Frame {
	return Frame{Data: b, Binary: true}
}

func (f Frame) String() string {
	return string(f.Data)
}

// Socket is a single transport connection. Implementations emit TopicData,
// TopicError and TopicClose from one goroutine per connection.
type Socket interface {
	ID() string
	ReadyState() ReadyState
	InitialQuery() url.Values
	InitialHeaders() http.Header
	Send(frame Frame) error
	Close() error
	On(topic string, l Listener) func()
	Off(topics ...string)
}

// NewSID returns a url-safe connection id.
func NewSID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
