package protocol

import (
	"fmt"
	"strconv"
)

// Param is a single typed value inside a command or answer. Only the field
// selected by Type is meaningful.
type Param struct {
	Type ParamType
	Num  int32
	Text string
}

func Number(n int32) Param {
	return Param{Type: ParamNumber, Num: n}
}

func Text(s string) Param {
	return Param{Type: ParamText, Text: s}
}

func (p Param) String() string {
	switch p.Type {
	case ParamNumber:
		return strconv.FormatInt(int64(p.Num), 10)
	case ParamText:
		return strconv.Quote(p.Text)
	default:
		return fmt.Sprintf("<invalid param %d>", byte(p.Type))
	}
}

type Command struct {
	Kind   CommandKind
	Params []Param
}

var commandShapes = map[CommandKind][]ParamType{
	CommandListNewsgroups:  {},
	CommandCreateNewsgroup: {ParamText},
	CommandDeleteNewsgroup: {ParamNumber},
	CommandListArticles:    {ParamNumber},
	CommandCreateArticle:   {ParamNumber, ParamText, ParamText, ParamText},
	CommandDeleteArticle:   {ParamNumber, ParamNumber},
	CommandGetArticle:      {ParamNumber, ParamNumber},
	CommandEnd:             {},
}

// Validate checks the parameter count and types against the fixed shape of
// the command kind.
func (c Command) Validate() error {
	shape, ok := commandShapes[c.Kind]
	if !ok {
		return &ProtocolError{Reason: ReasonUnknownCommand, Byte: byte(c.Kind)}
	}
	if len(c.Params) != len(shape) {
		return &ProtocolError{
			Reason: ReasonInvalidParams,
			Byte:   byte(c.Kind),
			Detail: fmt.Sprintf("%s takes %d parameters, got %d", c.Kind, len(shape), len(c.Params)),
		}
	}
	for i, t := range shape {
		if c.Params[i].Type != t {
			return &ProtocolError{
				Reason: ReasonInvalidParams,
				Byte:   byte(c.Kind),
				Detail: fmt.Sprintf("%s parameter %d must be %s, got %s", c.Kind, i, t, c.Params[i].Type),
			}
		}
	}
	return nil
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Kind, c.Params)
}

// Answer is the reply to one command. Code is set only when Status is
// StatusNak, Params only when it is StatusAck.
type Answer struct {
	Kind   AnswerKind
	Status Status
	Code   ErrorCode
	Params []Param
}

func Ack(kind AnswerKind, params ...Param) Answer {
	return Answer{Kind: kind, Status: StatusAck, Params: params}
}

func Nak(kind AnswerKind, code ErrorCode) Answer {
	return Answer{Kind: kind, Status: StatusNak, Code: code}
}

// Err returns the Nak code as an error, or nil for an Ack.
func (a Answer) Err() error {
	if a.Status == StatusNak {
		return a.Code
	}
	return nil
}

func (a Answer) String() string {
	if a.Status == StatusNak {
		return fmt.Sprintf("%s %s (%s)", a.Kind, a.Status, a.Code.Error())
	}
	return fmt.Sprintf("%s %s %v", a.Kind, a.Status, a.Params)
}
