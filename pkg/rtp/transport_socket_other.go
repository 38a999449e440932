//go:build !linux

package rtp

func setSockOptVoice(fd uintptr, dscp int) {}
