package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeCommand(t *testing.T, c Command) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteCommand(w, c))
	return buf.Bytes()
}

func encodeAnswer(t *testing.T, a Answer) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteAnswer(w, a))
	return buf.Bytes()
}

func TestNumberRoundTrip(t *testing.T) {
	for _, n := range []int32{0, -1, 1, math.MinInt32, math.MaxInt32} {
		frame := encodeCommand(t, Command{Kind: CommandDeleteNewsgroup, Params: []Param{Number(n)}})
		got, err := ReadCommand(bytes.NewReader(frame))
		require.NoError(t, err)
		require.Len(t, got.Params, 1)
		assert.Equal(t, Number(n), got.Params[0], "number %d", n)
	}
}

func TestTextRoundTrip(t *testing.T) {
	texts := []string{
		"",
		"Tech",
		"price: 5$ and 10$",
		string([]byte{ComEnd, AnsEnd, byte(ParamText), byte(ParamNumber)}),
		"räksmörgås",
	}
	for _, s := range texts {
		frame := encodeCommand(t, Command{Kind: CommandCreateNewsgroup, Params: []Param{Text(s)}})
		got, err := ReadCommand(bytes.NewReader(frame))
		require.NoError(t, err)
		require.Len(t, got.Params, 1)
		assert.Equal(t, Text(s), got.Params[0])
	}
}

func TestCommandWireLayout(t *testing.T) {
	frame := encodeCommand(t, Command{
		Kind:   CommandDeleteArticle,
		Params: []Param{Number(1), Number(258)},
	})
	assert.Equal(t, []byte{
		6,
		41, 0, 0, 0, 1,
		41, 0, 0, 1, 2,
		8,
	}, frame)

	frame = encodeCommand(t, Command{Kind: CommandCreateNewsgroup, Params: []Param{Text("ab")}})
	assert.Equal(t, []byte{2, 40, 0, 0, 0, 2, 'a', 'b', 8}, frame)
}

func TestEndCommandIsSingleByte(t *testing.T) {
	frame := encodeCommand(t, Command{Kind: CommandEnd})
	assert.Equal(t, []byte{ComEnd}, frame)

	got, err := ReadCommand(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, CommandEnd, got.Kind)
}

func TestAnswerRoundTrip(t *testing.T) {
	answers := []Answer{
		Ack(AnswerListNewsgroups, Number(2), Number(0), Text("Tech"), Number(1), Text("Food")),
		Ack(AnswerDeleteNewsgroup),
		Ack(AnswerGetArticle, Text("T"), Text("A"), Text("Body")),
		Nak(AnswerCreateNewsgroup, ErrNgAlreadyExists),
		Nak(AnswerGetArticle, ErrArtDoesNotExist),
	}
	for _, a := range answers {
		frame := encodeAnswer(t, a)
		got, err := ReadAnswer(bytes.NewReader(frame))
		require.NoError(t, err)
		assert.Equal(t, a.Kind, got.Kind)
		assert.Equal(t, a.Status, got.Status)
		assert.Equal(t, a.Code, got.Code)
		assert.Equal(t, len(a.Params), len(got.Params))
		for i := range a.Params {
			assert.Equal(t, a.Params[i], got.Params[i])
		}
	}
}

func TestAnswerAlwaysTerminated(t *testing.T) {
	for _, a := range []Answer{
		Ack(AnswerDeleteArticle),
		Ack(AnswerCreateArticle, Number(7)),
		Nak(AnswerDeleteArticle, ErrNgDoesNotExist),
	} {
		frame := encodeAnswer(t, a)
		assert.Equal(t, AnsEnd, frame[len(frame)-1], "answer %s", a)
	}

	frame := encodeAnswer(t, Nak(AnswerListArticles, ErrNgDoesNotExist))
	assert.Equal(t, []byte{23, 29, 51, 27}, frame)
}

func TestInvalidAnswerWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	err := WriteAnswer(w, Ack(AnswerGetArticle, Param{Type: 99}))
	require.Error(t, err)
	require.NoError(t, w.Flush())
	assert.Zero(t, buf.Len())

	err = WriteAnswer(w, Nak(AnswerGetArticle, ErrorCode(9)))
	assert.True(t, IsProtocolError(err, ReasonUnknownErrorCode))
}

func TestUnknownParamType(t *testing.T) {
	// the old delimiter-terminated string form is rejected
	frame := []byte{2, 'T', 'e', 'c', 'h', '$', 8}
	_, err := ReadCommand(bytes.NewReader(frame))
	assert.True(t, IsProtocolError(err, ReasonUnknownParamType), "got %v", err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := ReadCommand(bytes.NewReader([]byte{42, 8}))
	assert.True(t, IsProtocolError(err, ReasonUnknownCommand))

	_, err = ReadAnswer(bytes.NewReader([]byte{3, 28, 27}))
	assert.True(t, IsProtocolError(err, ReasonUnknownAnswer))
}

func TestInvalidLength(t *testing.T) {
	frame := []byte{2, 40, 0xff, 0xff, 0xff, 0xff, 8}
	_, err := ReadCommand(bytes.NewReader(frame))
	assert.True(t, IsProtocolError(err, ReasonInvalidLength))

	frame = encodeCommand(t, Command{Kind: CommandCreateNewsgroup, Params: []Param{Text("too long")}})
	_, err = NewDecoder(bytes.NewReader(frame), 4).ReadCommand()
	assert.True(t, IsProtocolError(err, ReasonInvalidLength))
}

func TestInvalidUTF8Text(t *testing.T) {
	frame := encodeCommand(t, Command{Kind: CommandCreateNewsgroup, Params: []Param{Text("bad\xff")}})
	_, err := ReadCommand(bytes.NewReader(frame))
	assert.True(t, IsProtocolError(err, ReasonInvalidText))

	ans := encodeAnswer(t, Ack(AnswerGetArticle, Text("t"), Text("a"), Text("\xc3\x28")))
	_, err = ReadAnswer(bytes.NewReader(ans))
	assert.True(t, IsProtocolError(err, ReasonInvalidText))
}

func TestClosedMidFrame(t *testing.T) {
	full := encodeCommand(t, Command{
		Kind:   CommandCreateArticle,
		Params: []Param{Number(1), Text("title"), Text("author"), Text("text")},
	})
	for cut := 0; cut < len(full); cut++ {
		_, err := ReadCommand(bytes.NewReader(full[:cut]))
		assert.True(t, errors.Is(err, ErrConnectionClosed), "cut at %d: %v", cut, err)
	}

	ans := encodeAnswer(t, Nak(AnswerDeleteNewsgroup, ErrNgDoesNotExist))
	_, err := ReadAnswer(bytes.NewReader(ans[:len(ans)-1]))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestNakMissingEnd(t *testing.T) {
	_, err := ReadAnswer(bytes.NewReader([]byte{21, 29, 50, 21}))
	assert.True(t, IsProtocolError(err, ReasonMissingEnd))
}

func TestValidate(t *testing.T) {
	ok := Command{Kind: CommandCreateArticle, Params: []Param{Number(1), Text("t"), Text("a"), Text("x")}}
	assert.NoError(t, ok.Validate())

	wrongArity := Command{Kind: CommandDeleteArticle, Params: []Param{Number(1)}}
	assert.True(t, IsProtocolError(wrongArity.Validate(), ReasonInvalidParams))

	wrongType := Command{Kind: CommandDeleteNewsgroup, Params: []Param{Text("1")}}
	assert.True(t, IsProtocolError(wrongType.Validate(), ReasonInvalidParams))

	assert.NoError(t, Command{Kind: CommandListNewsgroups}.Validate())
}

func TestKindMirroring(t *testing.T) {
	for k := CommandListNewsgroups; k <= CommandGetArticle; k++ {
		a, ok := k.Answer()
		require.True(t, ok)
		back, ok := a.Command()
		require.True(t, ok)
		assert.Equal(t, k, back)
	}
	_, ok := CommandEnd.Answer()
	assert.False(t, ok)
}

func TestNakAsError(t *testing.T) {
	err := Nak(AnswerGetArticle, ErrArtDoesNotExist).Err()
	assert.ErrorIs(t, err, ErrArtDoesNotExist)
	assert.NoError(t, Ack(AnswerGetArticle).Err())
}
