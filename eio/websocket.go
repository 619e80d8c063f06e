package eio

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type outbound struct {
	kind int
	data []byte
}

type wsSocket struct {
	*Emitter

	id      string
	conn    *websocket.Conn
	cfg     Config
	log     *zap.Logger
	query   url.Values
	headers http.Header

	state    *atomic.Int32
	wmu      sync.Mutex
	outgoing chan outbound
	done     chan struct{}
	once     sync.Once

	ready     chan struct{}
	readyOnce sync.Once

	tmu         sync.Mutex
	pingTimer   *time.Timer
	pongTimeout *time.Timer
}

func newWSSocket(id string, conn *websocket.Conn, r *http.Request, cfg Config, logger *zap.Logger) *wsSocket {
	size := cfg.WriteBufferSize
	if size <= 0 {
		size = 256
	}
	return &wsSocket{
		Emitter:  NewEmitter(),
		id:       id,
		conn:     conn,
		cfg:      cfg,
		log:      logger.With(zap.String("sid", id)),
		query:    r.URL.Query(),
		headers:  r.Header.Clone(),
		state:    atomic.NewInt32(int32(Opening)),
		outgoing: make(chan outbound, size),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

func (s *wsSocket) ID() string {
	return s.id
}

func (s *wsSocket) ReadyState() ReadyState {
	return ReadyState(s.state.Load())
}

func (s *wsSocket) InitialQuery() url.Values {
	return s.query
}

func (s *wsSocket) InitialHeaders() http.Header {
	return s.headers
}

// Send queues a frame. Text frames travel as Engine.IO message packets,
// binary frames are written as raw WebSocket binary messages.
func (s *wsSocket) Send(frame Frame) error {
	if frame.Binary {
		return s.enqueue(outbound{kind: websocket.BinaryMessage, data: frame.Data})
	}
	return s.enqueue(outbound{kind: websocket.TextMessage, data: Packet{Type: PacketMessage, Data: frame.Data}.Encode()})
}

// On subscribes l to topic. Incoming frames are held back until the first
// TopicData listener is registered.
func (s *wsSocket) On(topic string, l Listener) func() {
	off := s.Emitter.On(topic, l)
	if topic == TopicData {
		s.readyOnce.Do(func() {
			close(s.ready)
		})
	}
	return off
}

func (s *wsSocket) enqueue(msg outbound) error {
	if s.ReadyState() != Open {
		return ErrSocketClosed
	}
	select {
	case <-s.done:
		return ErrSocketClosed
	case s.outgoing <- msg:
		return nil
	default:
		return ErrSlowClient
	}
}

func (s *wsSocket) Close() error {
	s.closeWith("forced close", true)
	return nil
}

func (s *wsSocket) open() error {
	body, err := json.Marshal(handshake{
		SID:          s.id,
		Upgrades:     []string{},
		PingInterval: s.cfg.PingInterval.Milliseconds(),
		PingTimeout:  s.cfg.PingTimeout.Milliseconds(),
		MaxPayload:   s.cfg.MaxPayload,
	})
	if err != nil {
		return err
	}

	if err = s.write(websocket.TextMessage, Packet{Type: PacketOpen, Data: body}.Encode()); err != nil {
		return err
	}

	if s.cfg.MaxPayload > 0 {
		s.conn.SetReadLimit(s.cfg.MaxPayload)
	}
	s.state.Store(int32(Open))

	go s.writeLoop()
	go s.readLoop()
	s.schedulePing()

	return nil
}

func (s *wsSocket) readLoop() {
	select {
	case <-s.ready:
	case <-s.done:
		return
	}

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", zap.Error(err))
				s.Fire(TopicError, err.Error())
			}
			s.closeWith("transport close", false)
			return
		}

		if kind == websocket.BinaryMessage {
			s.Fire(TopicData, BinaryFrame(data))
			continue
		}

		packet, err := DecodePacket(data)
		if err != nil {
			s.log.Debug("bad packet", zap.Error(err))
			s.Fire(TopicError, err.Error())
			s.closeWith("parse error", false)
			return
		}

		switch packet.Type {
		case PacketPong:
			s.onPong()
		case PacketPing:
			_ = s.enqueue(outbound{kind: websocket.TextMessage, data: Packet{Type: PacketPong, Data: packet.Data}.Encode()})
		case PacketMessage:
			s.Fire(TopicData, Frame{Data: packet.Data})
		case PacketClose:
			s.closeWith("transport close", false)
			return
		default:
			s.log.Debug("ignored packet", zap.Stringer("type", packet.Type))
		}
	}
}

func (s *wsSocket) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outgoing:
			if err := s.write(msg.kind, msg.data); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				s.Fire(TopicError, err.Error())
				s.closeWith("transport error", false)
				return
			}
		}
	}
}

func (s *wsSocket) schedulePing() {
	if s.cfg.PingInterval <= 0 {
		return
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()

	s.pingTimer = time.AfterFunc(s.cfg.PingInterval, func() {
		if err := s.sendControl(PacketPing); err != nil {
			return
		}

		s.tmu.Lock()
		s.pongTimeout = time.AfterFunc(s.cfg.PingTimeout, func() {
			s.closeWith("ping timeout", false)
		})
		s.tmu.Unlock()
	})
}

func (s *wsSocket) onPong() {
	s.tmu.Lock()
	if s.pongTimeout != nil {
		s.pongTimeout.Stop()
	}
	s.tmu.Unlock()

	s.schedulePing()
}

func (s *wsSocket) stopTimers() {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	if s.pongTimeout != nil {
		s.pongTimeout.Stop()
	}
}

func (s *wsSocket) sendControl(t PacketType) error {
	return s.enqueue(outbound{kind: websocket.TextMessage, data: Packet{Type: t}.Encode()})
}

func (s *wsSocket) write(kind int, data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, data)
}

func (s *wsSocket) closeWith(reason string, notifyPeer bool) {
	closed := false
	s.once.Do(func() {
		s.state.Store(int32(Closing))
		s.stopTimers()
		close(s.done)

		if notifyPeer {
			_ = s.write(websocket.TextMessage, Packet{Type: PacketClose}.Encode())
		}
		_ = s.conn.Close()

		s.state.Store(int32(Closed))
		closed = true
	})

	if closed {
		s.log.Debug("closed", zap.String("reason", reason))
		s.Fire(TopicClose, reason)
	}
}
