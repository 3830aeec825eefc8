package connection

import (
	"net"
	"testing"

	"github.com/ChronosX88/newsd/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial(ln.Addr().String(), 0)
	require.NoError(t, err)
	defer client.Close()
	server := New(<-accepted)
	defer server.Close()

	assert.NotEqual(t, -1, server.Fd())
	assert.NotEmpty(t, server.ID())
	assert.NotEqual(t, client.ID(), server.ID())

	require.NoError(t, client.WriteByte(7))
	_, err = client.Write([]byte{1, 2})
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	b, err := server.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)
	assert.Equal(t, 2, server.Buffered())

	buf := make([]byte, 2)
	n, err := server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, buf[:n])
}

func TestPeerCloseIsConnectionClosed(t *testing.T) {
	a, b := net.Pipe()
	conn := New(a)
	assert.Equal(t, -1, conn.Fd())

	require.NoError(t, b.Close())
	_, err := conn.ReadByte()
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)

	require.NoError(t, conn.WriteByte(1))
	assert.ErrorIs(t, conn.Flush(), protocol.ErrConnectionClosed)
}

func TestDecodeFromConnection(t *testing.T) {
	a, b := net.Pipe()
	conn := New(a)
	defer conn.Close()

	go func() {
		peer := New(b)
		_ = protocol.WriteCommand(peer, protocol.Command{
			Kind:   protocol.CommandCreateNewsgroup,
			Params: []protocol.Param{protocol.Text("comp.lang.go")},
		})
		peer.Close()
	}()

	cmd, err := protocol.ReadCommand(conn)
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandCreateNewsgroup, cmd.Kind)
	assert.Equal(t, "comp.lang.go", cmd.Params[0].Text)

	_, err = protocol.ReadCommand(conn)
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)
}
