package rtp

import (
	"context"
	"net"

	"github.com/pion/rtp"
)

// Transport определяет интерфейс для транспортировки RTP пакетов
type Transport interface {
	// Send отправляет RTP пакет на удаленный адрес
	Send(packet *rtp.Packet) error

	// Receive получает RTP пакет с указанием источника
	Receive(ctx context.Context) (*rtp.Packet, net.Addr, error)

	// SetRemoteAddr устанавливает адрес назначения
	SetRemoteAddr(addr string) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	Close() error
	IsActive() bool
}

// TransportConfig базовая конфигурация для транспорта
type TransportConfig struct {
	RemoteAddr string // Удаленный адрес для отправки (опционально)
	BufferSize int    // Размер буфера для чтения
	DSCP       int    // DSCP маркировка, 0 - не менять
}

// DefaultTransportConfig возвращает конфигурацию по умолчанию
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		BufferSize: 1500, // Стандартный MTU
		DSCP:       DSCPExpeditedForwarding,
	}
}

const (
	// DSCPExpeditedForwarding EF для интерактивного аудио (RFC 4594)
	DSCPExpeditedForwarding = 46
)
