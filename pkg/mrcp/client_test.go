package mrcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer принимает одно соединение и передает его в serve
func startServer(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serve(conn)
	}()
	return ln.Addr().String()
}

func TestClientRoundTrip(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		req, err := ReadMessage(r)
		if err != nil {
			return
		}
		conn.Write(BuildResponse(req.RequestID, 200, StateInProgress, Headers{{HeaderChannelIdentifier, "c"}}, nil))
		conn.Write(BuildEvent(EventSpeakComplete, req.RequestID, StateComplete, Headers{{HeaderCompletionCause, "000 normal"}}, nil))
	})

	msgs := make(chan *Message, 4)
	closed := make(chan struct{})
	client, err := Dial(context.Background(), addr, HandlerFuncs{
		Message: func(m *Message) { msgs <- m },
		Close:   func() { close(closed) },
	}, nil)
	require.NoError(t, err)
	defer client.Close()

	c := NewCorrelator(client, "c", nil)
	id, err := c.Send(SpeakParams{Text: "hi"})
	require.NoError(t, err)

	resp := <-msgs
	out := c.OnMessage(resp)
	assert.Equal(t, OutcomeResolved, out.Kind)
	assert.Equal(t, id, out.RequestID)

	ev := <-msgs
	assert.Equal(t, EventSpeakComplete, ev.EventName)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose не вызван после закрытия сервером")
	}
}

func TestClientReportsMalformed(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("SIP/2.0 200 OK\r\n\r\n"))
		time.Sleep(100 * time.Millisecond)
	})

	errs := make(chan error, 1)
	client, err := Dial(context.Background(), addr, HandlerFuncs{
		Error: func(err error) { errs <- err },
	}, nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrMalformed)
	case <-time.After(2 * time.Second):
		t.Fatal("ошибка разбора не передана")
	}
}

func TestClientLocalCloseIsSilent(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		time.Sleep(500 * time.Millisecond)
	})

	called := make(chan string, 2)
	client, err := Dial(context.Background(), addr, HandlerFuncs{
		Error: func(error) { called <- "error" },
		Close: func() { called <- "close" },
	}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
	assert.Error(t, client.Write([]byte("x")))

	select {
	case what := <-called:
		t.Fatalf("неожиданный вызов %s", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), addr, HandlerFuncs{}, nil)
	assert.Error(t, err)
}
