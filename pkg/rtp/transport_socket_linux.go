//go:build linux

package rtp

import (
	"golang.org/x/sys/unix"
)

// setSockOptVoice поднимает приоритет сокета и выставляет DSCP.
// Ошибки игнорируются: в контейнерах эти опции часто запрещены.
func setSockOptVoice(fd uintptr, dscp int) {
	// 6 - приоритет интерактивного аудио
	_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, 6)

	if dscp > 0 {
		// DSCP в старших 6 битах TOS
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2)
	}
}
