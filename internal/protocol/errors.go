package protocol

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned when the peer goes away, including in the
// middle of a frame. No partial value is ever returned alongside it.
var ErrConnectionClosed = errors.New("connection closed")

// ErrorCode is the reason carried by a Nak answer.
type ErrorCode byte

const (
	ErrNgAlreadyExists ErrorCode = 50
	ErrNgDoesNotExist  ErrorCode = 51
	ErrArtDoesNotExist ErrorCode = 52
)

func (c ErrorCode) Error() string {
	switch c {
	case ErrNgAlreadyExists:
		return "newsgroup already exists"
	case ErrNgDoesNotExist:
		return "newsgroup does not exist"
	case ErrArtDoesNotExist:
		return "article does not exist"
	default:
		return fmt.Sprintf("unknown error code %d", byte(c))
	}
}

func (c ErrorCode) valid() bool {
	return c >= ErrNgAlreadyExists && c <= ErrArtDoesNotExist
}

type Reason int

const (
	ReasonUnknownCommand Reason = iota
	ReasonUnknownAnswer
	ReasonUnknownParamType
	ReasonUnknownStatus
	ReasonUnknownErrorCode
	ReasonInvalidLength
	ReasonInvalidParams
	ReasonMissingEnd
	ReasonInvalidText
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknownCommand:
		return "unknown command"
	case ReasonUnknownAnswer:
		return "unknown answer"
	case ReasonUnknownParamType:
		return "unknown parameter type"
	case ReasonUnknownStatus:
		return "unknown answer status"
	case ReasonUnknownErrorCode:
		return "unknown error code"
	case ReasonInvalidLength:
		return "invalid text length"
	case ReasonInvalidParams:
		return "invalid parameters"
	case ReasonMissingEnd:
		return "missing end of frame"
	case ReasonInvalidText:
		return "text is not valid UTF-8"
	default:
		return "protocol error"
	}
}

// ProtocolError reports a malformed frame. It is fatal for the connection
// that produced it and for nothing else.
type ProtocolError struct {
	Reason Reason
	Byte   byte
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol error: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("protocol error: %s (byte %d)", e.Reason, e.Byte)
}

// IsProtocolError reports whether err is a *ProtocolError with the given reason.
func IsProtocolError(err error, reason Reason) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Reason == reason
}
