package rtp

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
)

// PayloadTypePCMU статический payload type G.711 mu-law
const PayloadTypePCMU uint8 = 0

// SessionConfig конфигурация RTP сессии
type SessionConfig struct {
	PayloadType uint8
	SSRC        uint32 // 0 - сгенерировать

	// OnPayload вызывается из горутины приема для каждого валидного пакета
	OnPayload func(payload []byte)
	// OnError вызывается один раз при отказе сокета, после чего прием прекращается
	OnError func(err error)

	Logger *slog.Logger
}

// Session RTP сессия одного аудио потока.
// SSRC фиксирован на все время жизни, sequence растет на 1,
// timestamp растет на число сэмплов (байт PCMU) в пакете.
type Session struct {
	transport   Transport
	payloadType uint8
	ssrc        uint32
	logger      *slog.Logger

	sendMu         sync.Mutex
	sequenceNumber uint16
	timestamp      uint32

	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64

	onPayload func([]byte)
	onError   func(error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

// NewSession создает сессию поверх транспорта. Транспорт закрывается в Close.
func NewSession(transport Transport, config SessionConfig) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport обязателен")
	}
	ssrc := config.SSRC
	if ssrc == 0 {
		var err error
		if ssrc, err = randomUint32(); err != nil {
			return nil, fmt.Errorf("ошибка генерации SSRC: %w", err)
		}
	}
	seq, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации sequence number: %w", err)
	}
	ts, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации timestamp: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		transport:      transport,
		payloadType:    config.PayloadType,
		ssrc:           ssrc,
		logger:         logger,
		sequenceNumber: uint16(seq),
		timestamp:      ts,
		onPayload:      config.OnPayload,
		onError:        config.OnError,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// SetRemote задает адрес назначения исходящих пакетов
func (s *Session) SetRemote(ip string, port int) error {
	return s.transport.SetRemoteAddr(net.JoinHostPort(ip, strconv.Itoa(port)))
}

// SendPayload упаковывает payload в RTP пакет и отправляет его
func (s *Session) SendPayload(payload []byte, marker bool) error {
	if s.closed.Load() {
		return ErrTransportClosed
	}

	s.sendMu.Lock()
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        ExpectedRTPVersion,
			Marker:         marker,
			PayloadType:    s.payloadType,
			SequenceNumber: s.sequenceNumber,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.sequenceNumber++
	s.timestamp += uint32(len(payload))
	s.sendMu.Unlock()

	if err := s.transport.Send(packet); err != nil {
		return err
	}
	s.packetsSent.Add(1)
	observeSent(len(payload))
	return nil
}

// Start запускает прием пакетов
func (s *Session) Start() error {
	if s.closed.Load() {
		return ErrTransportClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("RTP сессия уже запущена")
	}
	s.wg.Add(1)
	go s.receiveLoop()
	return nil
}

func (s *Session) receiveLoop() {
	defer s.wg.Done()

	for {
		packet, addr, err := s.transport.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			var classified *ClassifiedError
			if errors.As(err, &classified) && classified.IsTimeout() {
				continue
			}
			var packetErr *PacketError
			if errors.As(err, &packetErr) {
				droppedTotal.Inc()
				s.logger.Debug("rtp.receiveLoop: drop", slog.Any("from", addr), slog.Any("err", err))
				continue
			}
			if s.onError != nil {
				s.onError(err)
			}
			return
		}

		s.packetsReceived.Add(1)
		observeReceived(len(packet.Payload))
		if s.onPayload != nil {
			s.onPayload(packet.Payload)
		}
	}
}

// Close останавливает прием и закрывает транспорт. Повторный вызов безопасен.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	err := s.transport.Close()
	s.wg.Wait()
	return err
}

// SSRC идентификатор источника
func (s *Session) SSRC() uint32 { return s.ssrc }

// LocalAddr локальный адрес транспорта
func (s *Session) LocalAddr() net.Addr { return s.transport.LocalAddr() }

// PacketsSent число отправленных пакетов
func (s *Session) PacketsSent() uint64 { return s.packetsSent.Load() }

// PacketsReceived число принятых пакетов
func (s *Session) PacketsReceived() uint64 { return s.packetsReceived.Load() }

// randomUint32 генерирует случайное число согласно RFC 3550 Appendix A.6
func randomUint32() (uint32, error) {
	var val uint32
	if err := binary.Read(rand.Reader, binary.BigEndian, &val); err != nil {
		return 0, err
	}
	return val, nil
}
