package raleighsl

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/raleighsl/raleighsl/internal/cache"
	"github.com/raleighsl/raleighsl/internal/ioengine"
	"github.com/raleighsl/raleighsl/internal/logging"
	"github.com/raleighsl/raleighsl/internal/netio"
	"github.com/raleighsl/raleighsl/internal/objectengine"
	"github.com/raleighsl/raleighsl/internal/objects"
	"github.com/raleighsl/raleighsl/internal/sched"
	"github.com/raleighsl/raleighsl/internal/txn"
)

// ServerParams configures a Server, following the DeviceParams/DefaultParams
// shape the teacher's device construction uses: a plain struct of optional
// fields plus a DefaultServerParams constructor, rather than a functional-
// options API.
type ServerParams struct {
	// TCPAddr is the "host:port" address to accept stream connections on.
	// Empty disables the TCP listener.
	TCPAddr string

	// UnixSocketPath is the filesystem path for a unix-domain stream
	// listener. Empty disables it.
	UnixSocketPath string

	// DatagramAddr is the "host:port" address for the UDP endpoint spec.md
	// §6 allows as a simplified one-packet-one-frame transport. Empty
	// disables it.
	DatagramAddr string

	// PollEngines is the number of poll-loop goroutines, each pinned to its
	// own OS thread (and, if len(CPUAffinity) > 0, a specific CPU) via
	// internal/sched — spec.md §4.9's "one poll thread per worker".
	PollEngines int

	// CPUAffinity lists CPUs to pin poll engines to round-robin; nil means
	// no affinity is set.
	CPUAffinity []int

	// CacheCapacity bounds the optional result cache (internal/cache); 0
	// disables it.
	CacheCapacity int

	// CachePolicy selects the eviction policy: "lru" or "2q" (default).
	CachePolicy string

	Logger *logging.Logger
}

// DefaultServerParams returns sensible defaults: a loopback TCP listener,
// no unix socket or datagram endpoint, one poll engine per two CPUs (per
// spec.md §4.9), and a 4096-entry 2Q cache.
func DefaultServerParams() ServerParams {
	return ServerParams{
		TCPAddr:       "127.0.0.1:7400",
		PollEngines:   sched.DefaultWorkerCount(runtime.NumCPU()),
		CacheCapacity: 4096,
		CachePolicy:   "2q",
		Logger:        logging.Default(),
	}
}

// Server wires together the object engine, transaction engine, optional
// cache, and the poll-driven network layer into a running instance: the
// root package's equivalent of the teacher's Device.
type Server struct {
	params   ServerParams
	logger   *logging.Logger
	metrics  *Metrics
	registry *objectengine.Registry
	txns     *txn.Engine
	openTxns *txnTable
	cache    *cache.Cache

	pool    *sched.Pool
	engines []*ioengine.Engine
	next    uint64 // round-robin counter for engine assignment

	acceptEngine *ioengine.Engine
	listenFds    []int

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewServer builds a Server with its object types registered and its
// engines allocated, but does not yet bind any sockets — call
// ListenAndServe for that.
func NewServer(params ServerParams) (*Server, error) {
	if params.PollEngines < 1 {
		params.PollEngines = 1
	}
	if params.Logger == nil {
		params.Logger = logging.Default()
	}

	registry := objectengine.NewRegistry()
	registry.Register(objects.NumberPlug)
	registry.Register(objects.CounterPlug)
	registry.Register(objects.DequePlug)
	registry.Register(objects.FlowPlug)

	var resultCache *cache.Cache
	if params.CacheCapacity > 0 {
		if params.CachePolicy == "lru" {
			resultCache = cache.New(cache.NewLRU())
		} else {
			resultCache = cache.New(cache.NewTwoQ(params.CacheCapacity))
		}
	}

	acceptEngine, err := ioengine.New()
	if err != nil {
		return nil, fmt.Errorf("raleighsl: new accept engine: %w", err)
	}
	engines := make([]*ioengine.Engine, params.PollEngines)
	for i := range engines {
		en, err := ioengine.New()
		if err != nil {
			return nil, fmt.Errorf("raleighsl: new poll engine %d: %w", i, err)
		}
		engines[i] = en
	}

	s := &Server{
		params:       params,
		logger:       params.Logger,
		metrics:      NewMetrics(),
		registry:     registry,
		txns:         txn.NewEngine(),
		openTxns:     newTxnTable(),
		cache:        resultCache,
		pool:         sched.NewPool(params.PollEngines+1, params.CPUAffinity),
		engines:      engines,
		acceptEngine: acceptEngine,
	}
	return s, nil
}

// Registry exposes the object registry for callers that want to pre-create
// objects (e.g. tests) without going through the wire protocol.
func (s *Server) Registry() *objectengine.Registry { return s.registry }

// Txns exposes the transaction engine for the same reason.
func (s *Server) Txns() *txn.Engine { return s.txns }

// Metrics returns the server's metrics instance.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Cache returns the server's optional result cache, or nil if
// ServerParams.CacheCapacity was 0. Exposed for advanced callers (e.g. a
// future typed stub layer) that want to cache derived values keyed by
// object id; the built-in object types and dispatch do not use it
// themselves since their state is already held in memory directly.
func (s *Server) Cache() *cache.Cache { return s.cache }

// ListenAndServe binds every endpoint configured in ServerParams, starts a
// poll-loop goroutine per engine (pinned the way internal/sched pins
// workers), and blocks until ctx is cancelled, at which point every engine
// and listener is closed and the method returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.params.TCPAddr != "" {
		fd, err := netio.ListenStream(s.params.TCPAddr)
		if err != nil {
			return err
		}
		s.listenFds = append(s.listenFds, fd)
	}
	if s.params.UnixSocketPath != "" {
		fd, err := netio.ListenUnix(s.params.UnixSocketPath)
		if err != nil {
			return err
		}
		s.listenFds = append(s.listenFds, fd)
	}
	if s.params.DatagramAddr != "" {
		fd, err := netio.ListenDatagram(s.params.DatagramAddr)
		if err != nil {
			return err
		}
		s.listenFds = append(s.listenFds, fd)
		if _, err := s.acceptEngine.Register(fd, s.datagramVtable(fd)); err != nil {
			return err
		}
	}
	for _, fd := range s.listenFds {
		if fd == s.datagramFd() {
			continue
		}
		if _, err := s.acceptEngine.Register(fd, s.acceptVtable(fd)); err != nil {
			return err
		}
	}

	stop := make(chan struct{})
	tasks := make([]sched.Task, 0, len(s.engines)+1)
	tasks = append(tasks, func() { s.acceptEngine.Run(stop, 100) })
	for _, en := range s.engines {
		en := en
		tasks = append(tasks, func() { en.Run(stop, 100) })
	}
	s.pool.Submit(tasks...)

	<-ctx.Done()
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	close(stop)
	s.acceptEngine.Close()
	for _, en := range s.engines {
		en.Close()
	}
	for _, fd := range s.listenFds {
		netio.Close(fd)
	}
	return nil
}

// datagramFd returns the registered datagram fd, or -1 if none; used only
// to avoid double-registering it via acceptVtable in the loop above.
func (s *Server) datagramFd() int {
	if s.params.DatagramAddr == "" {
		return -1
	}
	if len(s.listenFds) == 0 {
		return -1
	}
	return s.listenFds[len(s.listenFds)-1]
}

// acceptVtable drives a listening stream socket: on readability it accepts
// every pending connection, wrapping each in a conn and registering it with
// the next data-plane engine in round-robin order.
func (s *Server) acceptVtable(listenFd int) ioengine.Vtable {
	return ioengine.Vtable{
		Read: func(en *ioengine.Engine, ent *ioengine.Entity) error {
			for {
				fd, _, err := netio.Accept(listenFd)
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					return nil
				}
				if err != nil {
					return nil
				}
				s.adopt(fd)
			}
		},
	}
}

// adopt registers a freshly accepted fd with the next data-plane engine in
// round-robin order, spreading connections across poll threads the way
// spec.md §4.9 calls for ("affinitized connections").
func (s *Server) adopt(fd int) {
	idx := s.next % uint64(len(s.engines))
	s.next++
	en := s.engines[idx]
	c := newConn(s, fd)
	if _, err := en.Register(fd, c.vtable()); err != nil {
		s.logger.Warnf("raleighsl: register conn fd=%d: %v", fd, err)
		netio.Close(fd)
	}
}

// datagramVtable implements the simplified UDP transport: each recvfrom'd
// packet is parsed as one complete frame (no reassembly across packets,
// a deliberate deviation from the stream transports' incremental framing
// since a single in-memory dispatch is fast enough that deferring the
// response past the same packet's processing has no benefit here).
func (s *Server) datagramVtable(fd int) ioengine.Vtable {
	buf := make([]byte, 64*1024)
	return ioengine.Vtable{
		Read: func(en *ioengine.Engine, ent *ioengine.Entity) error {
			for {
				n, from, err := unix.Recvfrom(fd, buf, 0)
				if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
					return nil
				}
				if err != nil {
					return nil
				}
				if perr := s.dispatchDatagram(fd, from, buf[:n]); perr != nil {
					s.logger.Warnf("raleighsl: datagram dispatch: %v", perr)
				}
			}
		},
	}
}
