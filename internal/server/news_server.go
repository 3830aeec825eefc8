package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/backend/disk"
	"github.com/ChronosX88/newsd/internal/backend/memory"
	"github.com/ChronosX88/newsd/internal/backend/sqlite"
	"github.com/ChronosX88/newsd/internal/config"
	"github.com/ChronosX88/newsd/internal/connection"
	"github.com/ChronosX88/newsd/internal/metrics"
	"github.com/ChronosX88/newsd/internal/protocol"
	"go.uber.org/zap"
)

// acceptTimeout bounds an Accept after poll reported the listener readable,
// in case the pending connection vanished in between.
const acceptTimeout = 100 * time.Millisecond

var errServerStopped = errors.New("server stopped")

type activityKind int

const (
	activityNewConnection activityKind = iota
	activityReadable
)

// activity is what waitForActivity hands back: either a connection waiting
// to be accepted, or a registered session with input.
type activity struct {
	kind    activityKind
	session *Session
}

// NewsServer runs every connection from a single loop goroutine. It waits
// for readiness across the listener and all sessions, then either accepts
// or serves exactly one command, and starts over.
type NewsServer struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	backend backend.StorageBackend
	handler *Handler
	metrics *metrics.Metrics

	ln     *net.TCPListener
	lnFd   int
	poller *poller

	sessions []*Session
	cursor   int

	// guards stopping and serving, shared between the loop and Stop
	mu       sync.Mutex
	stopping bool
	serving  *Session

	done     chan struct{}
	stopOnce sync.Once
}

func NewNewsServer(cfg config.Config, log *zap.SugaredLogger) (*NewsServer, error) {
	b, err := initBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewNewsServerWithBackend(cfg, b, log), nil
}

// NewNewsServerWithBackend creates a server around an already opened backend.
// The server takes ownership of b and closes it on Stop.
func NewNewsServerWithBackend(cfg config.Config, b backend.StorageBackend, log *zap.SugaredLogger) *NewsServer {
	return &NewsServer{
		cfg:     cfg,
		log:     log,
		backend: b,
		handler: NewHandler(b),
		metrics: metrics.New(),
		lnFd:    -1,
		done:    make(chan struct{}),
	}
}

func initBackend(cfg config.Config, log *zap.SugaredLogger) (backend.StorageBackend, error) {
	var sb backend.StorageBackend

	switch cfg.BackendType {
	case config.MemoryBackendType:
		{
			sb = memory.NewMemoryBackend()
		}
	case config.DiskBackendType:
		{
			diskBackend, err := disk.NewDiskBackend(cfg.Disk)
			if err != nil {
				return nil, err
			}
			sb = diskBackend
		}
	case config.SQLiteBackendType:
		{
			sqliteBackend, err := sqlite.NewSQLiteBackend(cfg.SQLite, log)
			if err != nil {
				return nil, err
			}
			sb = sqliteBackend
		}
	default:
		{
			return nil, fmt.Errorf("invalid backend type, supported backends: %s", backend.SupportedBackendList)
		}
	}
	return sb, nil
}

func (ns *NewsServer) Metrics() *metrics.Metrics {
	return ns.metrics
}

// Addr returns the bound listener address. Only valid after Start.
func (ns *NewsServer) Addr() net.Addr {
	return ns.ln.Addr()
}

func (ns *NewsServer) Start() error {
	address := net.JoinHostPort(ns.cfg.Address, strconv.Itoa(ns.cfg.Port))
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	ns.ln = ln.(*net.TCPListener)

	rc, err := ns.ln.SyscallConn()
	if err != nil {
		ln.Close()
		return err
	}
	if err := rc.Control(func(fd uintptr) { ns.lnFd = int(fd) }); err != nil {
		ln.Close()
		return err
	}

	ns.poller, err = newPoller()
	if err != nil {
		ln.Close()
		return err
	}

	ns.log.Infof("Listening on %s...", ns.ln.Addr())

	go ns.loop()

	return nil
}

// Stop interrupts the loop, closes every connection and the backend, and
// returns once all of that is done. A session stalled in the middle of a
// command has its connection closed so the loop can get back to the top.
func (ns *NewsServer) Stop() {
	ns.stopOnce.Do(func() {
		if ns.poller == nil {
			ns.backend.Close()
			return
		}
		ns.mu.Lock()
		ns.stopping = true
		if ns.serving != nil {
			ns.serving.conn.Close()
		}
		ns.mu.Unlock()
		if err := ns.poller.wake(); err != nil {
			ns.log.Errorf("Failed to wake server loop: %v", err)
		}
		<-ns.done
	})
}

func (ns *NewsServer) loop() {
	defer close(ns.done)
	defer ns.shutdown()

	for {
		if ns.isStopping() {
			return
		}
		act, err := ns.waitForActivity()
		if err != nil {
			if !errors.Is(err, errServerStopped) {
				ns.log.Errorf("Server loop failed: %v", err)
			}
			return
		}

		switch act.kind {
		case activityNewConnection:
			ns.acceptConnection()
		case activityReadable:
			if !ns.beginServing(act.session) {
				return
			}
			ns.serveSession(act.session)
			ns.endServing()
		}
	}
}

func (ns *NewsServer) isStopping() bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.stopping
}

// beginServing publishes s as the session in progress, unless Stop already ran.
func (ns *NewsServer) beginServing(s *Session) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.stopping {
		return false
	}
	ns.serving = s
	return true
}

func (ns *NewsServer) endServing() {
	ns.mu.Lock()
	ns.serving = nil
	ns.mu.Unlock()
}

// waitForActivity blocks until the listener has a pending connection or a
// registered session has input, and returns exactly one of them. Sessions
// with bytes already buffered are ready without asking the kernel. Ready
// entries are taken round-robin so a chatty client cannot starve the others.
func (ns *NewsServer) waitForActivity() (activity, error) {
	for {
		slots := len(ns.sessions) + 1

		if slot, ok := ns.nextSlot(slots, func(slot int) bool {
			return slot > 0 && ns.sessions[slot-1].conn.Buffered() > 0
		}); ok {
			return ns.activityAt(slot), nil
		}

		fds := make([]int, 0, slots)
		fds = append(fds, ns.lnFd)
		for _, s := range ns.sessions {
			fds = append(fds, s.conn.Fd())
		}
		ready, woken, err := ns.poller.wait(fds)
		if err != nil {
			return activity{}, err
		}
		if woken {
			return activity{}, errServerStopped
		}

		readySet := make(map[int]bool, len(ready))
		for _, i := range ready {
			readySet[i] = true
		}
		if slot, ok := ns.nextSlot(slots, func(slot int) bool { return readySet[slot] }); ok {
			return ns.activityAt(slot), nil
		}
	}
}

// nextSlot scans slots starting at the cursor and advances the cursor past
// the first ready one. Slot 0 is the listener, slot i is sessions[i-1].
func (ns *NewsServer) nextSlot(slots int, ready func(slot int) bool) (int, bool) {
	for i := 0; i < slots; i++ {
		slot := (ns.cursor + i) % slots
		if ready(slot) {
			ns.cursor = slot + 1
			return slot, true
		}
	}
	return 0, false
}

func (ns *NewsServer) activityAt(slot int) activity {
	if slot == 0 {
		return activity{kind: activityNewConnection}
	}
	return activity{kind: activityReadable, session: ns.sessions[slot-1]}
}

func (ns *NewsServer) acceptConnection() {
	if err := ns.ln.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
		ns.log.Errorf("Failed to set accept deadline: %v", err)
	}
	conn, err := ns.ln.Accept()
	if err != nil {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			ns.log.Errorf("Failed to accept connection: %v", err)
		}
		return
	}
	ns.registerConnection(connection.New(conn))
}

func (ns *NewsServer) registerConnection(c *connection.Connection) *Session {
	s := NewSession(
		c,
		ns.handler,
		ns.log,
		ns.metrics,
		ns.cfg.MaxTextLength,
		time.Duration(ns.cfg.CommandTimeout)*time.Second,
	)
	ns.sessions = append(ns.sessions, s)
	ns.metrics.ConnectionOpened()
	ns.log.Infof("Client %s has connected!", c.RemoteAddr())
	return s
}

func (ns *NewsServer) deregisterConnection(s *Session) {
	for i, v := range ns.sessions {
		if v == s {
			ns.sessions = append(ns.sessions[:i], ns.sessions[i+1:]...)
			ns.metrics.ConnectionClosed()
			break
		}
	}
	s.close()
}

func (ns *NewsServer) serveSession(s *Session) {
	err := s.serve()
	if err == nil {
		return
	}

	var pe *protocol.ProtocolError
	switch {
	case errors.Is(err, protocol.ErrConnectionClosed), errors.Is(err, errSessionEnded):
		ns.log.Infof("Client %s has disconnected!", s.conn.RemoteAddr())
	case errors.As(err, &pe):
		ns.log.Warnf("Dropping client %s: %v", s.conn.RemoteAddr(), err)
	default:
		ns.log.Errorf("Failed to process command from %s: %v", s.conn.RemoteAddr(), err)
	}
	ns.deregisterConnection(s)
}

func (ns *NewsServer) shutdown() {
	for len(ns.sessions) > 0 {
		ns.deregisterConnection(ns.sessions[0])
	}
	ns.ln.Close()
	ns.poller.close()
	if err := ns.backend.Close(); err != nil {
		ns.log.Errorf("Failed to close backend: %v", err)
	}
}
