package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func pipeDialer(server chan<- net.Conn) Dialer {
	return func(context.Context) (io.ReadWriteCloser, error) {
		client, srv := net.Pipe()
		server <- srv
		return client, nil
	}
}

func TestStream_FramesAndDisconnect(t *testing.T) {
	servers := make(chan net.Conn, 1)
	s := NewStream("pipe", pipeDialer(servers))
	defer s.Close()

	require.ErrorIs(t, s.Send([]byte("{}")), ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	srv := <-servers
	assert.Equal(t, EventConnected, nextEvent(t, s.Events()).Type)

	go func() {
		_, _ = srv.Write([]byte("{\"a\":1}\x03\x03{\"b\":2}\x03{\"partial\""))
	}()

	ev := nextEvent(t, s.Events())
	assert.Equal(t, EventText, ev.Type)
	assert.Equal(t, `{"a":1}`, string(ev.Payload))
	ev = nextEvent(t, s.Events())
	assert.Equal(t, `{"b":2}`, string(ev.Payload))

	sent := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(srv).ReadString(etx)
		sent <- line
	}()
	require.NoError(t, s.Send([]byte(`{"id":1}`)))
	assert.Equal(t, "{\"id\":1}\x03", <-sent)

	_ = srv.Close()
	assert.Equal(t, EventDisconnected, nextEvent(t, s.Events()).Type)
	assert.ErrorIs(t, s.Send([]byte("{}")), ErrNotConnected)
}

func TestStream_CloseEndsEvents(t *testing.T) {
	servers := make(chan net.Conn, 1)
	s := NewStream("pipe", pipeDialer(servers))
	require.NoError(t, s.Connect(context.Background()))
	<-servers

	require.NoError(t, s.Close())
	for range s.Events() {
	}
	assert.ErrorIs(t, s.Connect(context.Background()), ErrClosed)
}

func TestScanFrames(t *testing.T) {
	adv, tok, err := scanFrames([]byte("abc\x03def"), false)
	require.NoError(t, err)
	assert.Equal(t, 4, adv)
	assert.Equal(t, "abc", string(tok))

	adv, tok, _ = scanFrames([]byte("def"), false)
	assert.Equal(t, 0, adv)
	assert.Nil(t, tok)

	adv, tok, _ = scanFrames([]byte("def"), true)
	assert.Equal(t, 3, adv)
	assert.Nil(t, tok)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	ws := NewWebSocket("ws" + strings.TrimPrefix(srv.URL, "http") + "/websocket")
	defer ws.Close()

	require.NoError(t, ws.Connect(context.Background()))
	assert.Equal(t, EventConnected, nextEvent(t, ws.Events()).Type)
	conn := <-serverConns

	require.NoError(t, ws.Send([]byte(`{"jsonrpc":"2.0","method":"printer.info","id":1}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "printer.info")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":{},"id":1}`)))
	ev := nextEvent(t, ws.Events())
	assert.Equal(t, EventText, ev.Type)
	assert.Contains(t, string(ev.Payload), `"id":1`)

	_ = conn.Close()
	assert.Equal(t, EventDisconnected, nextEvent(t, ws.Events()).Type)
	assert.ErrorIs(t, ws.Send([]byte("{}")), ErrNotConnected)
}

func TestOpen(t *testing.T) {
	tr, err := Open("http://printer.local:7125")
	require.NoError(t, err)
	ws, ok := tr.(*WebSocket)
	require.True(t, ok)
	assert.Equal(t, "ws://printer.local:7125/websocket", ws.url)

	tr, err = Open("unix:///tmp/moonraker.sock")
	require.NoError(t, err)
	assert.IsType(t, &Stream{}, tr)

	tr, err = Open("serial:///dev/ttyUSB0?baud=250000")
	require.NoError(t, err)
	assert.Equal(t, "serial:/dev/ttyUSB0", tr.(*Stream).name)

	_, err = Open("serial:///dev/ttyUSB0?baud=fast")
	assert.Error(t, err)
	_, err = Open("ftp://example.com")
	assert.Error(t, err)
}
