package rtp

import (
	"fmt"
	"net"
	"strconv"
)

// PortRange диапазон локальных портов для привязки
type PortRange struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// Candidates возвращает порты диапазона по возрастанию.
// Step 0 трактуется как 1.
func (r PortRange) Candidates() []int {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	if r.Min <= 0 || r.Max < r.Min {
		return nil
	}
	ports := make([]int, 0, (r.Max-r.Min)/step+1)
	for p := r.Min; p <= r.Max; p += step {
		ports = append(ports, p)
	}
	return ports
}

// PortExhaustedError ни один порт из списка не удалось занять
type PortExhaustedError struct {
	IP      string
	Tried   int
	LastErr error
}

func (e *PortExhaustedError) Error() string {
	if e.LastErr == nil {
		return fmt.Sprintf("нет свободного UDP порта на %s (проверено %d)", e.IP, e.Tried)
	}
	return fmt.Sprintf("нет свободного UDP порта на %s (проверено %d): %v", e.IP, e.Tried, e.LastErr)
}

func (e *PortExhaustedError) Unwrap() error { return e.LastErr }

// AllocateUDP привязывает UDP сокет к первому свободному порту из списка.
// Порты, занятые другими процессами, пропускаются.
func AllocateUDP(ip string, ports []int) (*net.UDPConn, int, error) {
	var lastErr error
	for _, port := range ports {
		addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err != nil {
			return nil, 0, fmt.Errorf("невалидный локальный адрес %s: %w", ip, err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, conn.LocalAddr().(*net.UDPAddr).Port, nil
	}
	return nil, 0, &PortExhaustedError{IP: ip, Tried: len(ports), LastErr: lastErr}
}
