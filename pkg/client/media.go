package client

import (
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/media"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/rtp"
)

// audioPath RTP сессия и аудио мост одного вызова
type audioPath struct {
	rtp      *rtp.Session
	bridge   *media.Bridge
	source   io.ReadCloser
	recorder *media.WAVRecorder
	logger   *slog.Logger

	mu        sync.Mutex
	onFailure func(error)
	closed    bool
}

// newAudioPath собирает аудио тракт на привязанном RTP сокете.
// Для распознавания источник читается из opts.AudioFile, для синтеза
// аудио уходит в stdout (если это не терминал) и в opts.OutputFile.
func newAudioPath(conn *net.UDPConn, resource media_sdp.Resource, cfg *config.Config, opts Options, logger *slog.Logger) (*audioPath, error) {
	a := &audioPath{logger: logger}

	var sink io.Writer
	if resource == media_sdp.ResourceSpeechRecog {
		source, err := media.OpenSource(opts.AudioFile)
		if err != nil {
			return nil, err
		}
		a.source = source
	} else {
		var sinks []io.Writer
		if playbackEnabled(opts) {
			sinks = append(sinks, opts.Stdout)
		}
		if opts.OutputFile != "" {
			a.recorder = media.NewWAVRecorder(opts.OutputFile, media.TargetSampleRate)
			sinks = append(sinks, a.recorder)
		}
		if len(sinks) > 0 {
			sink = media.NewMultiSink(logger, sinks...)
		}
	}

	transport, err := rtp.NewUDPTransport(conn, rtp.DefaultTransportConfig())
	if err != nil {
		a.closeSource()
		return nil, errors.Wrap(err, "RTP transport")
	}
	session, err := rtp.NewSession(transport, rtp.SessionConfig{
		PayloadType: rtp.PayloadTypePCMU,
		OnPayload:   a.handlePayload,
		OnError:     a.handleError,
		Logger:      logger,
	})
	if err != nil {
		transport.Close()
		a.closeSource()
		return nil, errors.Wrap(err, "RTP session")
	}
	a.rtp = session

	frameSize := int(cfg.Ptime.Milliseconds()) * media.TargetSampleRate / 1000
	a.bridge = media.NewBridge(media.BridgeConfig{
		FrameSize:   frameSize,
		Ptime:       cfg.Ptime,
		SilenceByte: cfg.Silence(),
		Logger:      logger,
	}, session, sink)
	return a, nil
}

// playbackEnabled воспроизведение в stdout только когда он перенаправлен
func playbackEnabled(opts Options) bool {
	if opts.NoSpeaker || opts.Stdout == nil {
		return false
	}
	if f, ok := opts.Stdout.(*os.File); ok {
		return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return true
}

// Start запускает прием RTP. onFailure получает отказ сокета.
func (a *audioPath) Start(onFailure func(error)) error {
	a.mu.Lock()
	a.onFailure = onFailure
	a.mu.Unlock()
	return a.rtp.Start()
}

func (a *audioPath) handlePayload(payload []byte) {
	a.bridge.HandleIncoming(payload)
}

func (a *audioPath) handleError(err error) {
	a.mu.Lock()
	fn := a.onFailure
	a.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (a *audioPath) SetRemote(ip string, port int) error {
	return a.rtp.SetRemote(ip, port)
}

func (a *audioPath) StartSending() error {
	// nil интерфейс, а не типизированный nil: мост шлет только тишину
	if a.source == nil {
		return a.bridge.StartSending(nil)
	}
	return a.bridge.StartSending(a.source)
}

func (a *audioPath) StartReceiving() error {
	return a.bridge.StartReceiving()
}

func (a *audioPath) Stop() {
	a.bridge.Stop()
}

// Close останавливает мост, закрывает RTP и записывает WAV файл
func (a *audioPath) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.bridge.Stop()
	var firstErr error
	if err := a.rtp.Close(); err != nil {
		firstErr = err
	}
	a.closeSource()
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logger.Info("client: audio saved", slog.Int("bytes", a.recorder.Len()))
	}
	a.logger.Debug("client: RTP closed",
		slog.Uint64("packetsSent", a.rtp.PacketsSent()),
		slog.Uint64("packetsReceived", a.rtp.PacketsReceived()))
	return firstErr
}

func (a *audioPath) closeSource() {
	if a.source != nil {
		a.source.Close()
	}
}
