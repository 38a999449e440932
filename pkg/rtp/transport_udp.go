package rtp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
)

// Константы для валидации пакетов согласно RFC 3550
const (
	MinRTPPacketSize   = 12   // Минимальный размер RTP заголовка
	MaxRTPPacketSize   = 1500 // Максимальный размер (MTU limit)
	ExpectedRTPVersion = 2

	receivePollInterval = 100 * time.Millisecond
)

// ErrTransportClosed транспорт закрыт
var ErrTransportClosed = errors.New("транспорт не активен")

// UDPTransport реализует Transport поверх уже привязанного UDP сокета
type UDPTransport struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	config     TransportConfig

	active bool
	mutex  sync.RWMutex
}

// NewUDPTransport создает транспорт на сокете conn.
// Сокет переходит во владение транспорта и закрывается в Close.
func NewUDPTransport(conn *net.UDPConn, config TransportConfig) (*UDPTransport, error) {
	if conn == nil {
		return nil, fmt.Errorf("UDP сокет обязателен")
	}
	if config.BufferSize == 0 {
		config.BufferSize = MaxRTPPacketSize
	}

	if raw, err := conn.SyscallConn(); err == nil {
		raw.Control(func(fd uintptr) {
			setSockOptVoice(fd, config.DSCP)
		})
	}

	transport := &UDPTransport{
		conn:   conn,
		config: config,
		active: true,
	}

	if config.RemoteAddr != "" {
		if err := transport.SetRemoteAddr(config.RemoteAddr); err != nil {
			return nil, err
		}
	}
	return transport, nil
}

// Send отправляет RTP пакет по UDP
func (t *UDPTransport) Send(packet *rtp.Packet) error {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	remoteAddr := t.remoteAddr
	t.mutex.RUnlock()

	if !active {
		return ErrTransportClosed
	}
	if remoteAddr == nil {
		return fmt.Errorf("удаленный адрес не установлен")
	}
	if err := validateRTPHeader(&packet.Header); err != nil {
		return fmt.Errorf("невалидный RTP заголовок для отправки: %w", err)
	}

	data, err := packet.Marshal()
	if err != nil {
		return fmt.Errorf("ошибка маршалинга RTP пакета: %w", err)
	}
	if err := validatePacketSize(len(data)); err != nil {
		return fmt.Errorf("невалидный размер исходящего пакета: %w", err)
	}

	if _, err = conn.WriteToUDP(data, remoteAddr); err != nil {
		return classifyNetworkError("UDP write", err)
	}
	return nil
}

// Receive получает RTP пакет по UDP.
// Чтение ограничено receivePollInterval, по истечении возвращается ClassifiedError с ErrorTypeTimeout.
func (t *UDPTransport) Receive(ctx context.Context) (*rtp.Packet, net.Addr, error) {
	t.mutex.RLock()
	active := t.active
	conn := t.conn
	bufferSize := t.config.BufferSize
	t.mutex.RUnlock()

	if !active {
		return nil, nil, ErrTransportClosed
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	buffer := make([]byte, bufferSize)
	conn.SetReadDeadline(time.Now().Add(receivePollInterval))

	n, addr, err := conn.ReadFromUDP(buffer)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		return nil, nil, classifyNetworkError("UDP read", err)
	}

	if err := validatePacketSize(n); err != nil {
		return nil, addr, &PacketError{Err: err}
	}
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(buffer[:n]); err != nil {
		return nil, addr, &PacketError{Err: fmt.Errorf("ошибка демаршалинга RTP пакета: %w", err)}
	}
	if err := validateRTPHeader(&packet.Header); err != nil {
		return nil, addr, &PacketError{Err: err}
	}
	return packet, addr, nil
}

// LocalAddr возвращает локальный адрес
func (t *UDPTransport) LocalAddr() net.Addr {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.conn.LocalAddr()
}

// RemoteAddr возвращает удаленный адрес
func (t *UDPTransport) RemoteAddr() net.Addr {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if t.remoteAddr == nil {
		return nil
	}
	return t.remoteAddr
}

// SetRemoteAddr устанавливает удаленный адрес
func (t *UDPTransport) SetRemoteAddr(addr string) error {
	remoteAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("ошибка разрешения удаленного адреса: %w", err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.remoteAddr = remoteAddr
	return nil
}

// Close закрывает транспорт
func (t *UDPTransport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.active {
		return nil
	}
	t.active = false
	return t.conn.Close()
}

// IsActive проверяет активность транспорта
func (t *UDPTransport) IsActive() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.active
}

func validatePacketSize(size int) error {
	if size < MinRTPPacketSize {
		return fmt.Errorf("пакет слишком мал: %d байт (минимум %d)", size, MinRTPPacketSize)
	}
	if size > MaxRTPPacketSize {
		return fmt.Errorf("пакет слишком велик: %d байт (максимум %d)", size, MaxRTPPacketSize)
	}
	return nil
}

func validateRTPHeader(header *rtp.Header) error {
	if header.Version != ExpectedRTPVersion {
		return fmt.Errorf("неподдерживаемая версия RTP: %d (ожидается %d)", header.Version, ExpectedRTPVersion)
	}
	if header.PayloadType > 127 {
		return fmt.Errorf("невалидный payload type: %d (максимум 127)", header.PayloadType)
	}
	return nil
}

// PacketError входящий пакет отброшен, сокет исправен
type PacketError struct {
	Err error
}

func (e *PacketError) Error() string { return "отброшен RTP пакет: " + e.Err.Error() }
func (e *PacketError) Unwrap() error { return e.Err }

// NetworkErrorType тип сетевой ошибки
type NetworkErrorType int

const (
	ErrorTypeTimeout NetworkErrorType = iota
	ErrorTypeClosed
	ErrorTypeOther
)

// ClassifiedError обертка для сетевых ошибок
type ClassifiedError struct {
	Type      NetworkErrorType
	Operation string
	Err       error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Err.Error())
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// IsTimeout true для таймаута чтения
func (e *ClassifiedError) IsTimeout() bool {
	return e.Type == ErrorTypeTimeout
}

func classifyNetworkError(operation string, err error) error {
	classified := &ClassifiedError{Operation: operation, Err: err, Type: ErrorTypeOther}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		classified.Type = ErrorTypeTimeout
	case errors.Is(err, net.ErrClosed):
		classified.Type = ErrorTypeClosed
	}
	return classified
}
