package media

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultFrameSize 20 мс μ-law при 8 кГц
	DefaultFrameSize = 160
	// DefaultPtime интервал отправки кадров
	DefaultPtime = 20 * time.Millisecond
	// DefaultSilenceByte μ-law тишина
	DefaultSilenceByte byte = 0xFF
)

// PayloadSender отправляет один RTP payload.
type PayloadSender interface {
	SendPayload(payload []byte, marker bool) error
}

// BridgeConfig конфигурация аудио моста
type BridgeConfig struct {
	FrameSize   int
	Ptime       time.Duration
	SilenceByte byte
	Logger      *slog.Logger

	// OnSendError вызывается при ошибке отправки кадра. Отправка продолжается.
	OnSendError func(error)
}

// DefaultBridgeConfig возвращает конфигурацию 160 байт / 20 мс / 0xFF.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		FrameSize:   DefaultFrameSize,
		Ptime:       DefaultPtime,
		SilenceByte: DefaultSilenceByte,
	}
}

// Bridge связывает источник/приемник аудио с RTP.
//
// Исходящее направление: один кадр FrameSize байт на каждый тик Ptime.
// После короткого или нулевого чтения источник больше не читается,
// отправляются только кадры тишины.
//
// Входящее направление: каждый payload декодируется в PCM16 и пишется в sink.
type Bridge struct {
	config    BridgeConfig
	sender    PayloadSender
	sink      io.Writer
	processor *AudioProcessor
	logger    *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	receiving bool
	stopped   bool

	silent      atomic.Bool
	framesSent  atomic.Uint64
	framesRecvd atomic.Uint64

	// newTicker подменяется в тестах
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// NewBridge создает мост. sender нужен для исходящего направления, sink для входящего; любой может быть nil.
func NewBridge(config BridgeConfig, sender PayloadSender, sink io.Writer) *Bridge {
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultFrameSize
	}
	if config.Ptime <= 0 {
		config.Ptime = DefaultPtime
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	processor, _ := NewAudioProcessor(AudioProcessorConfig{
		PayloadType: PayloadTypePCMU,
		Ptime:       config.Ptime,
		SampleRate:  8000,
	})
	return &Bridge{
		config:    config,
		sender:    sender,
		sink:      sink,
		processor: processor,
		logger:    logger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// StartSending запускает периодическую отправку кадров из src.
// src == nil означает отправку только тишины.
func (b *Bridge) StartSending(src io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return NewMediaError(ErrorCodeBridgeStopped, "мост остановлен")
	}
	if b.cancel != nil {
		return NewMediaError(ErrorCodeBridgeAlreadyStarted, "отправка уже запущена")
	}
	if src == nil {
		b.silent.Store(true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	tick, stopTick := b.newTicker(b.config.Ptime)

	go b.sendLoop(ctx, src, tick, stopTick, b.done)

	b.logger.Debug("Bridge.StartSending",
		slog.Int("frameSize", b.config.FrameSize),
		slog.Duration("ptime", b.config.Ptime))
	return nil
}

// StartReceiving включает обработку входящих payload.
func (b *Bridge) StartReceiving() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return NewMediaError(ErrorCodeBridgeStopped, "мост остановлен")
	}
	b.receiving = true
	return nil
}

func (b *Bridge) sendLoop(ctx context.Context, src io.Reader, tick <-chan time.Time, stopTick func(), done chan struct{}) {
	defer close(done)
	defer stopTick()

	buf := make([]byte, b.config.FrameSize)
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		frame := b.nextFrame(src, buf)
		if err := b.sender.SendPayload(frame, first); err != nil {
			b.logger.Warn("Bridge.sendLoop: ошибка отправки кадра", slog.Any("error", err))
			if b.config.OnSendError != nil {
				b.config.OnSendError(WrapMediaError(ErrorCodeBridgeSendFailed, "ошибка отправки кадра", err))
			}
			continue
		}
		first = false
		b.framesSent.Add(1)
	}
}

// nextFrame возвращает очередной кадр. Буфер buf переиспользуется, sender не должен его удерживать.
func (b *Bridge) nextFrame(src io.Reader, buf []byte) []byte {
	if b.silent.Load() {
		fillSilence(buf, b.config.SilenceByte)
		return buf
	}

	n, err := io.ReadFull(src, buf)
	if n == len(buf) && err == nil {
		return buf
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		b.logger.Warn("Bridge.nextFrame: ошибка чтения источника", slog.Any("error", err))
	}

	fillSilence(buf[n:], b.config.SilenceByte)
	b.silent.Store(true)
	b.logger.Debug("Bridge.nextFrame: источник исчерпан, переход на тишину", slog.Int("lastRead", n))
	return buf
}

func fillSilence(buf []byte, value byte) {
	for i := range buf {
		buf[i] = value
	}
}

// HandleIncoming декодирует входящий payload и пишет PCM16 в sink.
// Ошибки записи логируются и не прерывают поток.
func (b *Bridge) HandleIncoming(payload []byte) {
	b.mu.Lock()
	active := b.receiving && !b.stopped
	b.mu.Unlock()
	if !active {
		return
	}

	pcm := b.processor.ProcessIncoming(payload)
	b.framesRecvd.Add(1)
	if b.sink == nil {
		return
	}
	if _, err := b.sink.Write(pcm); err != nil {
		b.logger.Warn("Bridge.HandleIncoming: ошибка записи",
			slog.Any("error", WrapMediaError(ErrorCodeSinkWriteFailed, "ошибка записи в приемник", err)))
	}
}

// Stop останавливает мост. Повторный вызов и вызов без запуска ничего не делают,
// после остановки запущенного моста повторный запуск невозможен.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped || (b.cancel == nil && !b.receiving) {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.receiving = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	b.logger.Debug("Bridge.Stop",
		slog.Uint64("framesSent", b.framesSent.Load()),
		slog.Uint64("framesReceived", b.framesRecvd.Load()))
}

// FramesSent количество отправленных кадров
func (b *Bridge) FramesSent() uint64 {
	return b.framesSent.Load()
}

// FramesReceived количество обработанных входящих payload
func (b *Bridge) FramesReceived() uint64 {
	return b.framesRecvd.Load()
}

// Silent true после исчерпания источника
func (b *Bridge) Silent() bool {
	return b.silent.Load()
}
