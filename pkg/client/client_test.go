package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
	"github.com/arzzra/mrcp_client/pkg/session"
)

// fakeMRCPServer сервер распознавания: отвечает 200 и сразу завершает RECOGNIZE
type fakeMRCPServer struct {
	ln       net.Listener
	mu       sync.Mutex
	requests []*mrcp.Message
}

func newFakeMRCPServer(t *testing.T) *fakeMRCPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeMRCPServer{ln: ln}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeMRCPServer) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeMRCPServer) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := mrcp.ReadMessage(r)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		conn.Write(mrcp.BuildResponse(req.RequestID, 200, mrcp.StateInProgress, mrcp.Headers{
			{Name: mrcp.HeaderChannelIdentifier, Value: "e2e@speechrecog"},
		}, nil))
		if req.Method == mrcp.MethodRecognize {
			// даем клиенту отправить несколько кадров
			time.Sleep(100 * time.Millisecond)
			conn.Write(mrcp.BuildEvent(mrcp.EventRecognitionComplete, req.RequestID, mrcp.StateComplete, mrcp.Headers{
				{Name: mrcp.HeaderChannelIdentifier, Value: "e2e@speechrecog"},
				{Name: mrcp.HeaderCompletionCause, Value: "000 success"},
				{Name: mrcp.HeaderContentType, Value: mrcp.ContentTypeNLSML},
			}, []byte("<result>hello</result>")))
		}
	}
}

func (f *fakeMRCPServer) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		out = append(out, r.Method)
	}
	return out
}

// fakeUAS SIP сервер, отвечающий SDP с адресами фейковых MRCP и RTP
type fakeUAS struct {
	port int
	byes chan struct{}
}

func newFakeUAS(t *testing.T, mrcpPort, rtpPort int) *fakeUAS {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	ua, err := sipgo.NewUA(sipgo.WithUserAgentHostname("127.0.0.1"))
	require.NoError(t, err)
	srv, err := sipgo.NewServer(ua)
	require.NoError(t, err)

	var contact sip.Uri
	require.NoError(t, sip.ParseUri("sip:mrcp@127.0.0.1:"+strconv.Itoa(port), &contact))

	answer := fmt.Sprintf("v=0\r\n"+
		"o=FakeServer 1 1 IN IP4 127.0.0.1\r\n"+
		"s=-\r\n"+
		"c=IN IP4 127.0.0.1\r\n"+
		"t=0 0\r\n"+
		"m=application %d TCP/MRCPv2 1\r\n"+
		"a=setup:passive\r\n"+
		"a=connection:new\r\n"+
		"a=channel:e2e@speechrecog\r\n"+
		"a=cmid:1\r\n"+
		"m=audio %d RTP/AVP 0\r\n"+
		"a=rtpmap:0 PCMU/8000\r\n"+
		"a=recvonly\r\n"+
		"a=mid:1\r\n", mrcpPort, rtpPort)

	f := &fakeUAS{port: port, byes: make(chan struct{}, 1)}
	srv.OnInvite(func(req *sip.Request, tx sip.ServerTransaction) {
		res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
		res.To().Params = res.To().Params.Add("tag", "uas-tag")
		res.AppendHeader(&sip.ContactHeader{Address: contact, Params: sip.NewParams()})
		ct := sip.ContentTypeHeader("application/sdp")
		res.AppendHeader(&ct)
		res.SetBody([]byte(answer))
		tx.Respond(res)
	})
	srv.OnAck(func(req *sip.Request, tx sip.ServerTransaction) {})
	srv.OnBye(func(req *sip.Request, tx sip.ServerTransaction) {
		tx.Respond(sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil))
		select {
		case f.byes <- struct{}{}:
		default:
		}
	})

	go srv.ServeUDP(conn)
	t.Cleanup(func() {
		ua.Close()
		conn.Close()
	})
	return f
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunRecognitionOverLoopback(t *testing.T) {
	mrcpServer := newFakeMRCPServer(t)

	rtpSink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer rtpSink.Close()
	rtpPort := rtpSink.LocalAddr().(*net.UDPAddr).Port

	uas := newFakeUAS(t, mrcpServer.port(), rtpPort)

	cfgPath := writeConfig(t, `
local_ip: 127.0.0.1
sip:
  ports: {min: 41000, max: 41200}
rtp:
  ports: {min: 43000, max: 43400, step: 2}
timeout: 10s
log:
  level: error
`)

	var stdout bytes.Buffer
	code, err := Run(context.Background(), media_sdp.ResourceSpeechRecog, Options{
		ServerHost: "127.0.0.1",
		ServerPort: uas.port,
		Grammar:    "builtin:grammar/digits",
		ConfigPath: cfgPath,
		Stdout:     &stdout,
		Stderr:     io.Discard,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	select {
	case <-uas.byes:
	case <-time.After(5 * time.Second):
		t.Fatal("BYE не получен")
	}

	assert.Equal(t, []string{mrcp.MethodRecognize}, mrcpServer.methods())
	assert.Contains(t, stdout.String(), "Completion-Cause: 000 success")
	assert.Contains(t, stdout.String(), "<result>hello</result>")

	// клиент начал отправку тишины
	require.NoError(t, rtpSink.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := rtpSink.ReadFromUDP(buf)
	require.NoError(t, err)
	var pkt pionrtp.Packet
	require.NoError(t, pkt.Unmarshal(buf[:n]))
	assert.Equal(t, uint8(0), pkt.PayloadType)
	assert.Len(t, pkt.Payload, 160)
}

func TestRunPortExhausted(t *testing.T) {
	busy, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer busy.Close()
	port := busy.LocalAddr().(*net.UDPAddr).Port

	cfgPath := writeConfig(t, fmt.Sprintf(`
local_ip: 127.0.0.1
sip:
  ports: {min: %d, max: %d}
`, port, port))

	code, err := Run(context.Background(), media_sdp.ResourceSpeechSynth, Options{
		ServerHost: "127.0.0.1",
		ServerPort: 5060,
		ConfigPath: cfgPath,
		Stdout:     io.Discard,
		Stderr:     io.Discard,
	})
	assert.Equal(t, 1, code)
	category, ok := session.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, session.CategoryResource, category)
}

func TestRunInvalidOptions(t *testing.T) {
	code, err := Run(context.Background(), media_sdp.ResourceSpeechRecog, Options{ServerPort: 5060})
	assert.Equal(t, 1, code)
	assert.Error(t, err)

	code, err = Run(context.Background(), media_sdp.ResourceSpeechRecog, Options{
		ServerHost: "127.0.0.1",
		ServerPort: 5060,
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	assert.Equal(t, 1, code)
	assert.Error(t, err)
}

func TestDetectAdvertiseIP(t *testing.T) {
	assert.Equal(t, "10.1.2.3", detectAdvertiseIP("10.1.2.3", "127.0.0.1", 5060))
	assert.Equal(t, "127.0.0.1", detectAdvertiseIP("0.0.0.0", "127.0.0.1", 5060))
}
