package eio

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/olebedev/emitter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const protocolVersion = "4"

type Config struct {
	PingInterval    time.Duration `yaml:"ping_interval" env-default:"25s" env:"EIO_PING_INTERVAL"`
	PingTimeout     time.Duration `yaml:"ping_timeout" env-default:"20s" env:"EIO_PING_TIMEOUT"`
	MaxPayload      int64         `yaml:"max_payload" env-default:"1000000" env:"EIO_MAX_PAYLOAD"`
	WriteBufferSize int           `yaml:"write_buffer_size" env-default:"256" env:"EIO_WRITE_BUFFER_SIZE"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"EIO_ALLOWED_ORIGINS" env-separator:","`
}

func DefaultConfig() Config {
	return Config{
		PingInterval:    25 * time.Second,
		PingTimeout:     20 * time.Second,
		MaxPayload:      1e6,
		WriteBufferSize: 256,
	}
}

// Server accepts WebSocket connections and announces each one on TopicConnection.
type Server struct {
	*emitter.Emitter

	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
	sockets  sync.Map // map[sid]*wsSocket
}

func NewServer(cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		Emitter: &emitter.Emitter{},
		cfg:     cfg,
		log:     logger.Named("eio"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Config() Config {
	return s.cfg
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("EIO") != protocolVersion {
		s.writeError(w, http.StatusBadRequest, 5, "Unsupported protocol version")
		return
	}
	if query.Get("transport") != "websocket" {
		s.writeError(w, http.StatusBadRequest, 0, "Transport unknown")
		return
	}
	if query.Get("sid") != "" {
		s.writeError(w, http.StatusBadRequest, 1, "Session ID unknown")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusBadRequest, 2, "Bad handshake method")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sck := newWSSocket(NewSID(), conn, r, s.cfg, s.log)
	if err = sck.open(); err != nil {
		s.log.Warn("handshake failed", zap.String("sid", sck.ID()), zap.Error(err))
		_ = conn.Close()
		return
	}

	s.sockets.Store(sck.ID(), sck)
	sck.On(TopicClose, func(...any) {
		s.sockets.Delete(sck.ID())
	})

	s.log.Debug("new connection", zap.String("sid", sck.ID()), zap.String("remote", r.RemoteAddr))
	s.Emit(TopicConnection, Socket(sck))
}

// Count returns the number of open connections.
func (s *Server) Count() int {
	n := 0
	s.sockets.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

// Close closes every open connection.
func (s *Server) Close() error {
	var err error
	s.sockets.Range(func(key, value any) bool {
		err = multierr.Append(err, value.(*wsSocket).Close())
		return true
	})
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) writeError(w http.ResponseWriter, status, code int, message string) {
	s.log.Debug("bad request", zap.Int("code", code), zap.String("message", message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
	})
}
