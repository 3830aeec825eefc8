package server

import (
	"errors"
	"time"

	"github.com/ChronosX88/newsd/internal/connection"
	"github.com/ChronosX88/newsd/internal/metrics"
	"github.com/ChronosX88/newsd/internal/protocol"
	"go.uber.org/zap"
)

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionProcessing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionProcessing:
		return "processing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errSessionEnded is returned by serve when the client sent End.
var errSessionEnded = errors.New("session ended by client")

type Session struct {
	conn           *connection.Connection
	dec            *protocol.Decoder
	h              *Handler
	log            *zap.SugaredLogger
	metrics        *metrics.Metrics
	commandTimeout time.Duration

	state SessionState
}

func NewSession(
	conn *connection.Connection,
	handler *Handler,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
	maxTextLength int,
	commandTimeout time.Duration,
) *Session {
	return &Session{
		conn:           conn,
		dec:            protocol.NewDecoder(conn, maxTextLength),
		h:              handler,
		log:            log.With("session", conn.ID(), "remote", conn.RemoteAddr()),
		metrics:        m,
		commandTimeout: commandTimeout,
		state:          SessionIdle,
	}
}

func (s *Session) ID() string {
	return s.conn.ID()
}

func (s *Session) State() SessionState {
	return s.state
}

// serve reads one command, executes it and writes its answer. It must only be
// called once the connection is known to be readable. Any returned error
// leaves the session closed.
func (s *Session) serve() (err error) {
	if s.state == SessionClosed {
		return protocol.ErrConnectionClosed
	}
	s.state = SessionProcessing
	defer func() {
		if err != nil {
			s.close()
			return
		}
		s.state = SessionIdle
	}()

	if s.commandTimeout > 0 {
		if err := s.conn.SetReadDeadline(s.commandTimeout); err != nil {
			return err
		}
	}

	cmd, err := s.dec.ReadCommand()
	if err != nil {
		return err
	}
	if cmd.Kind == protocol.CommandEnd {
		return errSessionEnded
	}
	s.log.Debugf("Received command: %s", cmd)

	answer, err := s.h.Handle(cmd)
	if err != nil {
		return err
	}
	s.metrics.ObserveCommand(cmd.Kind.String(), answer.Status.String())

	return protocol.WriteAnswer(s.conn, answer)
}

func (s *Session) close() {
	if s.state == SessionClosed {
		return
	}
	s.state = SessionClosed
	s.conn.Close()
}
