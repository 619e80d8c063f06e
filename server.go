package sio

import (
	"regexp"
	"sync"
	"time"

	"github.com/funcards/socket.io-server/eio"
	"github.com/olebedev/emitter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ Server = (*server)(nil)

type Config struct {
	// ConnectionTimeout closes a connection that has not joined any namespace in time.
	// Zero or less disables it.
	ConnectionTimeout time.Duration `yaml:"connection_timeout" env-default:"45s" env:"SIO_CONNECTION_TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		ConnectionTimeout: 45 * time.Second,
	}
}

// Engine announces new transport connections on eio.TopicConnection.
type Engine interface {
	On(topic string, middlewares ...func(*emitter.Event)) <-chan emitter.Event
	Off(topic string, channels ...<-chan emitter.Event)
}

// Server owns the namespaces and the live clients.
type Server interface {
	Config() Config
	AdapterFactory() AdapterFactory
	Logger() *zap.Logger
	Accept(conn eio.Socket) Client
	HasNamespace(name string) bool
	Namespace(name string) Namespace
	NamespaceMatch(re *regexp.Regexp) *NamespaceGroup
	NamespaceFunc(match NamespacePredicate) *NamespaceGroup
	Shutdown() error
}

type server struct {
	cfg            Config
	engine         Engine
	adapterFactory AdapterFactory
	log            *zap.Logger

	mu         sync.Mutex
	namespaces sync.Map
	groups     []*NamespaceGroup
	patterns   map[string]*NamespaceGroup

	clients sync.Map

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewServer creates the server with the default namespace "/" and starts accepting
// connections announced by engine. engine may be nil, in which case connections are
// handed over with Accept. A nil adapterFactory selects MemoryAdapterFactory.
func NewServer(cfg Config, engine Engine, adapterFactory AdapterFactory, logger *zap.Logger) *server {
	if adapterFactory == nil {
		adapterFactory = MemoryAdapterFactory
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &server{
		cfg:            cfg,
		engine:         engine,
		adapterFactory: adapterFactory,
		log:            logger.Named("sio"),
		patterns:       make(map[string]*NamespaceGroup),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	s.Namespace("/")

	if engine == nil {
		close(s.done)
	} else {
		go s.run(engine.On(eio.TopicConnection))
	}

	return s
}

func (s *server) Config() Config {
	return s.cfg
}

func (s *server) AdapterFactory() AdapterFactory {
	return s.adapterFactory
}

func (s *server) Logger() *zap.Logger {
	return s.log
}

// Accept attaches a new transport connection and connects it to "/".
func (s *server) Accept(conn eio.Socket) Client {
	return s.accept(conn)
}

func (s *server) accept(conn eio.Socket) *client {
	client := newClient(s, conn)
	s.clients.Store(conn.ID(), client)

	s.log.Debug("server new client", zap.String("client_id", conn.ID()))

	client.connect("/", nil)

	return client
}

func (s *server) HasNamespace(name string) bool {
	_, ok := s.namespaces.Load(norm(name))
	return ok
}

// Namespace returns the namespace called name, creating it when missing.
func (s *server) Namespace(name string) Namespace {
	return s.namespace(name)
}

func (s *server) namespace(name string) *NamespaceImpl {
	name = norm(name)

	if nsp, ok := s.lookup(name); ok {
		return nsp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if nsp, ok := s.lookup(name); ok {
		return nsp
	}

	nsp := newNamespace(name, s)
	s.namespaces.Store(name, nsp)

	s.log.Debug("server new namespace", zap.String("nsp", name))

	return nsp
}

// NamespaceMatch returns the group of namespaces whose whole name matches re.
// Calls with the same pattern share one group.
func (s *server) NamespaceMatch(re *regexp.Regexp) *NamespaceGroup {
	pattern := re.String()
	full := regexp.MustCompile(`^(?:` + pattern + `)$`)

	s.mu.Lock()
	defer s.mu.Unlock()

	if group, ok := s.patterns[pattern]; ok {
		return group
	}

	group := newNamespaceGroup(s, full.MatchString)
	s.groups = append(s.groups, group)
	s.patterns[pattern] = group

	return group
}

// NamespaceFunc returns a new group of namespaces accepted by match.
func (s *server) NamespaceFunc(match NamespacePredicate) *NamespaceGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := newNamespaceGroup(s, match)
	s.groups = append(s.groups, group)

	return group
}

// Shutdown stops accepting connections and disconnects every client.
func (s *server) Shutdown() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done

	var err error
	s.clients.Range(func(_, value any) bool {
		err = multierr.Append(err, value.(*client).Disconnect())
		return true
	})
	return err
}

func (s *server) lookup(name string) (*NamespaceImpl, bool) {
	if value, ok := s.namespaces.Load(name); ok {
		return value.(*NamespaceImpl), true
	}
	return nil, false
}

// checkNamespace returns the namespace called name, creating it through the first
// group that accepts the name.
func (s *server) checkNamespace(name string) (*NamespaceImpl, bool) {
	name = norm(name)

	if nsp, ok := s.lookup(name); ok {
		return nsp, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if nsp, ok := s.lookup(name); ok {
		return nsp, true
	}

	for _, group := range s.groups {
		if group.match(name) {
			nsp := group.createChild(name)
			s.namespaces.Store(name, nsp)
			return nsp, true
		}
	}
	return nil, false
}

func (s *server) removeClient(c *client) {
	s.clients.Delete(c.ID())
}

func (s *server) run(onConnection <-chan emitter.Event) {
	defer close(s.done)
	defer s.engine.Off(eio.TopicConnection, onConnection)

	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-onConnection:
			if !ok {
				return
			}
			if len(event.Args) == 0 {
				continue
			}
			conn, ok := event.Args[0].(eio.Socket)
			if !ok {
				s.log.Warn("server unexpected connection event", zap.Any("args", event.Args))
				continue
			}
			s.accept(conn)
		}
	}
}
