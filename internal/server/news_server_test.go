package server

import (
	"testing"
	"time"

	"github.com/ChronosX88/newsd/internal/client"
	"github.com/ChronosX88/newsd/internal/config"
	"github.com/ChronosX88/newsd/internal/connection"
	"github.com/ChronosX88/newsd/internal/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startTestServer(t *testing.T, mutate func(*config.Config)) *NewsServer {
	t.Helper()

	cfg := config.Default()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	if mutate != nil {
		mutate(&cfg)
	}

	ns, err := NewNewsServer(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.NoError(t, ns.Start())
	t.Cleanup(ns.Stop)
	return ns
}

func dialClient(t *testing.T, ns *NewsServer) *client.Client {
	t.Helper()
	c, err := client.Dial(ns.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func dialRaw(t *testing.T, ns *NewsServer) *connection.Connection {
	t.Helper()
	conn, err := connection.Dial(ns.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAnswer(t *testing.T, conn *connection.Connection) protocol.Answer {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(5*time.Second))
	a, err := protocol.ReadAnswer(conn)
	require.NoError(t, err)
	return a
}

func expectClosed(t *testing.T, conn *connection.Connection) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(5*time.Second))
	_, err := conn.ReadByte()
	require.ErrorIs(t, err, protocol.ErrConnectionClosed)
	assert.NotContains(t, err.Error(), "timed out")
}

func TestEndToEndScenarios(t *testing.T) {
	ns := startTestServer(t, nil)
	c := dialClient(t, ns)

	// scenario 1
	g, err := c.CreateNewsgroup("Tech")
	require.NoError(t, err)
	_, err = c.CreateNewsgroup("Tech")
	require.ErrorIs(t, err, protocol.ErrNgAlreadyExists)
	groups, err := c.ListNewsgroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, g, groups[0].ID)
	assert.Equal(t, "Tech", groups[0].Name)

	// scenario 2
	id, err := c.CreateArticle(g, "T", "A", "Body")
	require.NoError(t, err)
	a, err := c.GetArticle(g, id)
	require.NoError(t, err)
	assert.Equal(t, "T", a.Title)
	assert.Equal(t, "A", a.Author)
	assert.Equal(t, "Body", a.Text)
	require.NoError(t, c.DeleteArticle(g, id))
	_, err = c.GetArticle(g, id)
	require.ErrorIs(t, err, protocol.ErrArtDoesNotExist)

	// scenario 3
	require.NoError(t, c.DeleteNewsgroup(g))
	_, err = c.ListArticles(g)
	require.ErrorIs(t, err, protocol.ErrNgDoesNotExist)
	_, err = c.GetArticle(g, id)
	require.ErrorIs(t, err, protocol.ErrNgDoesNotExist)

	assert.Equal(t, 2.0, testutil.ToFloat64(ns.Metrics().Commands.WithLabelValues("CREATE_NG", "ACK"))+
		testutil.ToFloat64(ns.Metrics().Commands.WithLabelValues("CREATE_NG", "NAK")))
}

func TestCommandsServedInArrivalOrderAcrossConnections(t *testing.T) {
	ns := startTestServer(t, nil)
	a := dialRaw(t, ns)
	b := dialRaw(t, ns)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, protocol.WriteCommand(a, protocol.Command{
		Kind:   protocol.CommandCreateNewsgroup,
		Params: []protocol.Param{protocol.Text("Tech")},
	}))
	ans := readAnswer(t, a)
	assert.Equal(t, protocol.AnswerCreateNewsgroup, ans.Kind)
	assert.Equal(t, protocol.StatusAck, ans.Status)

	require.NoError(t, protocol.WriteCommand(b, protocol.Command{Kind: protocol.CommandListNewsgroups}))
	ans = readAnswer(t, b)
	assert.Equal(t, protocol.StatusAck, ans.Status)
	require.Len(t, ans.Params, 3)
	assert.Equal(t, int32(1), ans.Params[0].Num)
	assert.Equal(t, "Tech", ans.Params[2].Text)
}

func TestPipelinedCommands(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)

	var frames []byte
	for _, name := range []string{"a", "b", "a"} {
		var err error
		frames, err = protocol.AppendCommand(frames, protocol.Command{
			Kind:   protocol.CommandCreateNewsgroup,
			Params: []protocol.Param{protocol.Text(name)},
		})
		require.NoError(t, err)
	}
	frames, err := protocol.AppendCommand(frames, protocol.Command{Kind: protocol.CommandListNewsgroups})
	require.NoError(t, err)
	_, err = conn.Write(frames)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	assert.Equal(t, protocol.StatusAck, readAnswer(t, conn).Status)
	assert.Equal(t, protocol.StatusAck, readAnswer(t, conn).Status)
	third := readAnswer(t, conn)
	assert.Equal(t, protocol.StatusNak, third.Status)
	assert.Equal(t, protocol.ErrNgAlreadyExists, third.Code)
	list := readAnswer(t, conn)
	assert.Equal(t, protocol.AnswerListNewsgroups, list.Kind)
	assert.Equal(t, int32(2), list.Params[0].Num)
}

func TestProtocolErrorClosesOnlyOffendingConnection(t *testing.T) {
	ns := startTestServer(t, nil)
	good := dialClient(t, ns)
	bad := dialRaw(t, ns)

	_, err := good.CreateNewsgroup("Tech")
	require.NoError(t, err)

	// delimiter-terminated text is not a valid parameter
	_, err = bad.Write([]byte{2, 'T', 'e', 'c', 'h', '$', 8})
	require.NoError(t, err)
	require.NoError(t, bad.Flush())
	expectClosed(t, bad)

	groups, err := good.ListNewsgroups()
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestWrongArityClosesConnection(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)

	require.NoError(t, protocol.WriteCommand(conn, protocol.Command{
		Kind:   protocol.CommandDeleteArticle,
		Params: []protocol.Param{protocol.Number(1)},
	}))
	expectClosed(t, conn)
}

func TestEmptyNewsgroupNameClosesConnection(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)

	require.NoError(t, protocol.WriteCommand(conn, protocol.Command{
		Kind:   protocol.CommandCreateNewsgroup,
		Params: []protocol.Param{protocol.Text("")},
	}))
	expectClosed(t, conn)
}

func TestEndClosesSession(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)

	require.NoError(t, protocol.WriteCommand(conn, protocol.Command{Kind: protocol.CommandEnd}))
	expectClosed(t, conn)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(ns.Metrics().ConnectionsTotal))
}

func TestIdleConnectionDoesNotBlockOthers(t *testing.T) {
	ns := startTestServer(t, nil)
	_ = dialRaw(t, ns)

	c := dialClient(t, ns)
	_, err := c.CreateNewsgroup("Tech")
	require.NoError(t, err)
}

func TestDisconnectDeregisters(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)
	c := dialClient(t, ns)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 2
	}, 5*time.Second, 10*time.Millisecond)

	// half a frame, then gone
	_, err := conn.Write([]byte{2, byte(protocol.ParamText), 0, 0})
	require.NoError(t, err)
	require.NoError(t, conn.Flush())
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = c.ListNewsgroups()
	require.NoError(t, err)
}

func TestCommandTimeoutDropsStalledClient(t *testing.T) {
	ns := startTestServer(t, func(cfg *config.Config) {
		cfg.CommandTimeout = 1
	})
	stalled := dialRaw(t, ns)

	_, err := stalled.Write([]byte{2, byte(protocol.ParamText), 0, 0, 0, 10, 'x'})
	require.NoError(t, err)
	require.NoError(t, stalled.Flush())
	expectClosed(t, stalled)

	c := dialClient(t, ns)
	_, err = c.ListNewsgroups()
	require.NoError(t, err)
}

func TestStopClosesConnections(t *testing.T) {
	ns := startTestServer(t, nil)
	conn := dialRaw(t, ns)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 1
	}, 5*time.Second, 10*time.Millisecond)

	ns.Stop()
	expectClosed(t, conn)

	// a second Stop is harmless
	ns.Stop()
}

func TestStopInterruptsStalledCommand(t *testing.T) {
	ns := startTestServer(t, nil)
	stalled := dialRaw(t, ns)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(ns.Metrics().ConnectionsActive) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// the length promises ten bytes, only one ever arrives
	_, err := stalled.Write([]byte{2, byte(protocol.ParamText), 0, 0, 0, 10, 'x'})
	require.NoError(t, err)
	require.NoError(t, stalled.Flush())
	time.Sleep(100 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		ns.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a stalled client")
	}
	expectClosed(t, stalled)
}

func TestInvalidUTF8ClosesConnection(t *testing.T) {
	ns := startTestServer(t, func(cfg *config.Config) {
		cfg.BackendType = config.DiskBackendType
		cfg.Disk.Path = t.TempDir()
	})
	good := dialClient(t, ns)
	bad := dialRaw(t, ns)

	g, err := good.CreateNewsgroup("Tech")
	require.NoError(t, err)

	require.NoError(t, protocol.WriteCommand(bad, protocol.Command{
		Kind:   protocol.CommandCreateArticle,
		Params: []protocol.Param{protocol.Number(g), protocol.Text("bad\xff"), protocol.Text("A"), protocol.Text("Body")},
	}))
	expectClosed(t, bad)

	articles, err := good.ListArticles(g)
	require.NoError(t, err)
	assert.Empty(t, articles)
}
