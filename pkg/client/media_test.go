package client

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/media"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// syncBuffer bytes.Buffer для записи из горутины приема
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func listenLoopback(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestAudioPathSendsSilenceWithoutSource(t *testing.T) {
	conn, _ := listenLoopback(t)
	peer, peerPort := listenLoopback(t)
	defer peer.Close()

	a, err := newAudioPath(conn, media_sdp.ResourceSpeechRecog, config.Default(), Options{}, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Start(nil))
	require.NoError(t, a.SetRemote("127.0.0.1", peerPort))
	require.NoError(t, a.StartSending())

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)

	var pkt pionrtp.Packet
	require.NoError(t, pkt.Unmarshal(buf[:n]))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 160), pkt.Payload)

	a.Stop()
	a.Stop()
}

func TestAudioPathPlaysAndRecords(t *testing.T) {
	conn, port := listenLoopback(t)
	peer, _ := listenLoopback(t)
	defer peer.Close()

	playback := &syncBuffer{}
	wavPath := filepath.Join(t.TempDir(), "out.wav")
	opts := Options{Stdout: playback, OutputFile: wavPath}

	a, err := newAudioPath(conn, media_sdp.ResourceSpeechSynth, config.Default(), opts, slog.Default())
	require.NoError(t, err)
	require.NoError(t, a.Start(nil))
	require.NoError(t, a.StartReceiving())

	pkt := pionrtp.Packet{
		Header:  pionrtp.Header{Version: 2, PayloadType: 0, SequenceNumber: 1, SSRC: 7},
		Payload: bytes.Repeat([]byte{0xFF}, 160),
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	_, err = peer.WriteToUDP(raw, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return playback.Len() == 320 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Close())

	f, err := os.Open(wavPath)
	require.NoError(t, err)
	defer f.Close()
	format, pcm, err := media.ReadWAV(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(8000), format.SampleRate)
	assert.Len(t, pcm, 320)
}

func TestPlaybackEnabled(t *testing.T) {
	assert.True(t, playbackEnabled(Options{Stdout: io.Discard}))
	assert.False(t, playbackEnabled(Options{Stdout: io.Discard, NoSpeaker: true}))
	assert.False(t, playbackEnabled(Options{}))
}

func TestReporter(t *testing.T) {
	var out bytes.Buffer
	r := reporter{w: &out, logger: slog.Default()}
	r.report(&mrcp.Message{
		Kind:      mrcp.KindEvent,
		EventName: mrcp.EventRecognitionComplete,
		Headers:   mrcp.Headers{{Name: mrcp.HeaderCompletionCause, Value: "001 no-match"}},
		Body:      []byte("<result/>"),
	})
	assert.Equal(t, "Completion-Cause: 001 no-match\n<result/>\n", out.String())
}
