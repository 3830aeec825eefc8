package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// FrameWriter receives whole encoded frames. *bufio.Writer and
// *connection.Connection both satisfy it.
type FrameWriter interface {
	io.Writer
	Flush() error
}

// Decoder reads frames off a byte stream.
type Decoder struct {
	r             io.ByteReader
	maxTextLength int
}

func NewDecoder(r io.ByteReader, maxTextLength int) *Decoder {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return &Decoder{r: r, maxTextLength: maxTextLength}
}

func ReadCommand(r io.ByteReader) (Command, error) {
	return NewDecoder(r, DefaultMaxTextLength).ReadCommand()
}

func ReadAnswer(r io.ByteReader) (Answer, error) {
	return NewDecoder(r, DefaultMaxTextLength).ReadAnswer()
}

// ReadCommand reads one command frame. The End kind is a frame of its own and
// is returned without reading further.
func (d *Decoder) ReadCommand() (Command, error) {
	b, err := d.readByte()
	if err != nil {
		return Command{}, err
	}
	kind := CommandKind(b)
	if !kind.valid() {
		return Command{}, &ProtocolError{Reason: ReasonUnknownCommand, Byte: b}
	}
	if kind == CommandEnd {
		return Command{Kind: CommandEnd}, nil
	}
	params, err := d.readParams(ComEnd)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: kind, Params: params}, nil
}

func (d *Decoder) ReadAnswer() (Answer, error) {
	b, err := d.readByte()
	if err != nil {
		return Answer{}, err
	}
	kind := AnswerKind(b)
	if _, ok := kind.Command(); !ok {
		return Answer{}, &ProtocolError{Reason: ReasonUnknownAnswer, Byte: b}
	}

	b, err = d.readByte()
	if err != nil {
		return Answer{}, err
	}
	switch Status(b) {
	case StatusAck:
		params, err := d.readParams(AnsEnd)
		if err != nil {
			return Answer{}, err
		}
		return Ack(kind, params...), nil
	case StatusNak:
		c, err := d.readByte()
		if err != nil {
			return Answer{}, err
		}
		code := ErrorCode(c)
		if !code.valid() {
			return Answer{}, &ProtocolError{Reason: ReasonUnknownErrorCode, Byte: c}
		}
		end, err := d.readByte()
		if err != nil {
			return Answer{}, err
		}
		if end != AnsEnd {
			return Answer{}, &ProtocolError{Reason: ReasonMissingEnd, Byte: end}
		}
		return Nak(kind, code), nil
	default:
		return Answer{}, &ProtocolError{Reason: ReasonUnknownStatus, Byte: b}
	}
}

func (d *Decoder) readParams(end byte) ([]Param, error) {
	var params []Param
	for {
		tag, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if tag == end {
			return params, nil
		}
		switch ParamType(tag) {
		case ParamNumber:
			n, err := d.readNumber()
			if err != nil {
				return nil, err
			}
			params = append(params, Number(n))
		case ParamText:
			s, err := d.readText()
			if err != nil {
				return nil, err
			}
			params = append(params, Text(s))
		default:
			return nil, &ProtocolError{Reason: ReasonUnknownParamType, Byte: tag}
		}
	}
}

func (d *Decoder) readNumber() (int32, error) {
	var buf [4]byte
	for i := range buf {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (d *Decoder) readText() (string, error) {
	n, err := d.readNumber()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > d.maxTextLength {
		return "", &ProtocolError{
			Reason: ReasonInvalidLength,
			Byte:   byte(ParamText),
			Detail: fmt.Sprintf("text length %d outside [0, %d]", n, d.maxTextLength),
		}
	}
	buf := make([]byte, n)
	if rr, ok := d.r.(io.Reader); ok {
		if _, err := io.ReadFull(rr, buf); err != nil {
			return "", closedOr(err)
		}
	} else {
		for i := range buf {
			b, err := d.readByte()
			if err != nil {
				return "", err
			}
			buf[i] = b
		}
	}
	if !utf8.Valid(buf) {
		return "", &ProtocolError{Reason: ReasonInvalidText, Byte: byte(ParamText)}
	}
	return string(buf), nil
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, closedOr(err)
	}
	return b, nil
}

func closedOr(err error) error {
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("read: %w", err)
}

// AppendCommand appends the encoded command frame to dst. The End kind is
// encoded as its single byte.
func AppendCommand(dst []byte, c Command) ([]byte, error) {
	if !c.Kind.valid() {
		return dst, &ProtocolError{Reason: ReasonUnknownCommand, Byte: byte(c.Kind)}
	}
	if c.Kind == CommandEnd {
		return append(dst, ComEnd), nil
	}
	frame := append(dst, byte(c.Kind))
	frame, err := appendParams(frame, c.Params)
	if err != nil {
		return dst, err
	}
	return append(frame, ComEnd), nil
}

// AppendAnswer appends the encoded answer frame to dst. Every frame it
// produces ends with AnsEnd; on error dst is returned unchanged.
func AppendAnswer(dst []byte, a Answer) ([]byte, error) {
	if _, ok := a.Kind.Command(); !ok {
		return dst, &ProtocolError{Reason: ReasonUnknownAnswer, Byte: byte(a.Kind)}
	}
	frame := append(dst, byte(a.Kind), byte(a.Status))
	switch a.Status {
	case StatusAck:
		var err error
		if frame, err = appendParams(frame, a.Params); err != nil {
			return dst, err
		}
	case StatusNak:
		if !a.Code.valid() {
			return dst, &ProtocolError{Reason: ReasonUnknownErrorCode, Byte: byte(a.Code)}
		}
		frame = append(frame, byte(a.Code))
	default:
		return dst, &ProtocolError{Reason: ReasonUnknownStatus, Byte: byte(a.Status)}
	}
	return append(frame, AnsEnd), nil
}

func appendParams(dst []byte, params []Param) ([]byte, error) {
	for _, p := range params {
		switch p.Type {
		case ParamNumber:
			dst = append(dst, byte(ParamNumber))
			dst = binary.BigEndian.AppendUint32(dst, uint32(p.Num))
		case ParamText:
			dst = append(dst, byte(ParamText))
			dst = binary.BigEndian.AppendUint32(dst, uint32(len(p.Text)))
			dst = append(dst, p.Text...)
		default:
			return dst, &ProtocolError{Reason: ReasonUnknownParamType, Byte: byte(p.Type)}
		}
	}
	return dst, nil
}

// WriteCommand encodes c and writes it as one flushed frame.
func WriteCommand(w FrameWriter, c Command) error {
	frame, err := AppendCommand(nil, c)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

// WriteAnswer encodes a and writes it as one flushed frame. Nothing is written
// if the answer cannot be encoded.
func WriteAnswer(w FrameWriter, a Answer) error {
	frame, err := AppendAnswer(nil, a)
	if err != nil {
		return err
	}
	return writeFrame(w, frame)
}

func writeFrame(w FrameWriter, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Flush()
}
