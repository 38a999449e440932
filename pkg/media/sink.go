package media

import (
	"io"
	"log/slog"
	"sync"
)

// MultiSink раздает PCM всем приемникам.
// Отказавший приемник исключается, остальные продолжают получать аудио.
type MultiSink struct {
	mu     sync.Mutex
	sinks  []io.Writer
	failed []bool
	logger *slog.Logger
}

// NewMultiSink создает раздатчик. nil приемники пропускаются.
func NewMultiSink(logger *slog.Logger, sinks ...io.Writer) *MultiSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MultiSink{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	m.failed = make([]bool, len(m.sinks))
	return m
}

// Write реализует io.Writer. Ошибка возвращается только если отказали все приемники.
func (m *MultiSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	alive := 0
	for i, s := range m.sinks {
		if m.failed[i] {
			continue
		}
		if _, err := s.Write(p); err != nil {
			m.failed[i] = true
			lastErr = err
			m.logger.Warn("MultiSink.Write: приемник отключен", slog.Int("sink", i), slog.Any("error", err))
			continue
		}
		alive++
	}
	if alive == 0 && lastErr != nil {
		return 0, WrapMediaError(ErrorCodeSinkWriteFailed, "все приемники отказали", lastErr)
	}
	return len(p), nil
}

// Len число приемников
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
