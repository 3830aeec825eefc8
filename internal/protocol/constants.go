package protocol

type CommandKind byte

const (
	CommandListNewsgroups  CommandKind = 1
	CommandCreateNewsgroup CommandKind = 2
	CommandDeleteNewsgroup CommandKind = 3
	CommandListArticles    CommandKind = 4
	CommandCreateArticle   CommandKind = 5
	CommandDeleteArticle   CommandKind = 6
	CommandGetArticle      CommandKind = 7
	CommandEnd             CommandKind = 8 // also the frame sentinel COM_END
)

type AnswerKind byte

const (
	AnswerListNewsgroups  AnswerKind = 20
	AnswerCreateNewsgroup AnswerKind = 21
	AnswerDeleteNewsgroup AnswerKind = 22
	AnswerListArticles    AnswerKind = 23
	AnswerCreateArticle   AnswerKind = 24
	AnswerDeleteArticle   AnswerKind = 25
	AnswerGetArticle      AnswerKind = 26
)

type Status byte

const (
	StatusAck Status = 28
	StatusNak Status = 29
)

type ParamType byte

const (
	ParamText   ParamType = 40
	ParamNumber ParamType = 41
)

const (
	ComEnd byte = byte(CommandEnd)
	AnsEnd byte = 27
)

// DefaultMaxTextLength bounds a single text parameter unless a Decoder says otherwise.
const DefaultMaxTextLength = 1 << 20

func (k CommandKind) String() string {
	switch k {
	case CommandListNewsgroups:
		return "LIST_NG"
	case CommandCreateNewsgroup:
		return "CREATE_NG"
	case CommandDeleteNewsgroup:
		return "DELETE_NG"
	case CommandListArticles:
		return "LIST_ART"
	case CommandCreateArticle:
		return "CREATE_ART"
	case CommandDeleteArticle:
		return "DELETE_ART"
	case CommandGetArticle:
		return "GET_ART"
	case CommandEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

func (k CommandKind) valid() bool {
	return k >= CommandListNewsgroups && k <= CommandEnd
}

// Answer returns the answer kind mirroring k. End has no answer.
func (k CommandKind) Answer() (AnswerKind, bool) {
	if k < CommandListNewsgroups || k > CommandGetArticle {
		return 0, false
	}
	return AnswerKind(byte(k) - byte(CommandListNewsgroups) + byte(AnswerListNewsgroups)), true
}

func (k AnswerKind) String() string {
	if c, ok := k.Command(); ok {
		return "ANS_" + c.String()
	}
	return "UNKNOWN"
}

// Command returns the command kind k answers.
func (k AnswerKind) Command() (CommandKind, bool) {
	if k < AnswerListNewsgroups || k > AnswerGetArticle {
		return 0, false
	}
	return CommandKind(byte(k) - byte(AnswerListNewsgroups) + byte(CommandListNewsgroups)), true
}

func (s Status) String() string {
	switch s {
	case StatusAck:
		return "ACK"
	case StatusNak:
		return "NAK"
	default:
		return "UNKNOWN"
	}
}

func (t ParamType) String() string {
	switch t {
	case ParamText:
		return "PAR_STRING"
	case ParamNumber:
		return "PAR_NUM"
	default:
		return "UNKNOWN"
	}
}
