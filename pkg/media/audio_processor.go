package media

import (
	"fmt"
	"sync"
	"time"
)

// AudioProcessor преобразует аудио между PCM16 little-endian и payload кодека.
// Ведет статистику обработанных пакетов. Поддерживается только PCMU.
type AudioProcessor struct {
	config AudioProcessorConfig
	mutex  sync.RWMutex

	// Статистика
	bytesProcessed uint64
	packetsIn      uint64
	packetsOut     uint64
}

// AudioProcessorConfig содержит конфигурацию для создания AudioProcessor.
type AudioProcessorConfig struct {
	PayloadType PayloadType   // Тип кодека
	Ptime       time.Duration // Packet time
	SampleRate  uint32        // Частота дискретизации
}

// AudioProcessorStatistics статистика аудио процессора
type AudioProcessorStatistics struct {
	PayloadType    PayloadType
	BytesProcessed uint64
	PacketsIn      uint64
	PacketsOut     uint64
}

// DefaultAudioProcessorConfig возвращает конфигурацию для телефонии: PCMU, 8kHz, 20ms.
func DefaultAudioProcessorConfig() AudioProcessorConfig {
	return AudioProcessorConfig{
		PayloadType: PayloadTypePCMU,
		Ptime:       time.Millisecond * 20,
		SampleRate:  8000,
	}
}

// NewAudioProcessor создает новый аудио процессор.
// Отсутствующие параметры заполняются значениями по умолчанию.
func NewAudioProcessor(config AudioProcessorConfig) (*AudioProcessor, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 8000
	}
	if config.Ptime == 0 {
		config.Ptime = time.Millisecond * 20
	}
	if config.PayloadType != PayloadTypePCMU {
		return nil, NewMediaError(ErrorCodeAudioCodecUnsupported,
			fmt.Sprintf("неподдерживаемый payload type: %d", config.PayloadType))
	}
	return &AudioProcessor{config: config}, nil
}

// SamplesPerFrame количество отсчетов в одном пакете
func (ap *AudioProcessor) SamplesPerFrame() int {
	return int(float64(ap.config.SampleRate) * ap.config.Ptime.Seconds())
}

// ProcessOutgoing кодирует один кадр PCM16 в payload.
// Размер кадра должен соответствовать ptime.
func (ap *AudioProcessor) ProcessOutgoing(pcm []byte) ([]byte, error) {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	ap.packetsIn++
	ap.bytesProcessed += uint64(len(pcm))

	expected := ap.SamplesPerFrame() * 2
	if len(pcm) != expected {
		return nil, NewMediaError(ErrorCodeAudioSizeInvalid,
			fmt.Sprintf("неожиданный размер аудио данных: %d, ожидается: %d", len(pcm), expected)).
			WithContext("ptime", ap.config.Ptime)
	}

	ap.packetsOut++
	return EncodeMulaw(pcm), nil
}

// ProcessIncoming декодирует payload произвольной длины в PCM16.
func (ap *AudioProcessor) ProcessIncoming(payload []byte) []byte {
	ap.mutex.Lock()
	defer ap.mutex.Unlock()

	ap.packetsIn++
	ap.bytesProcessed += uint64(len(payload))
	ap.packetsOut++
	return DecodeMulaw(payload)
}

// GetStatistics возвращает статистику обработки
func (ap *AudioProcessor) GetStatistics() AudioProcessorStatistics {
	ap.mutex.RLock()
	defer ap.mutex.RUnlock()

	return AudioProcessorStatistics{
		PayloadType:    ap.config.PayloadType,
		BytesProcessed: ap.bytesProcessed,
		PacketsIn:      ap.packetsIn,
		PacketsOut:     ap.packetsOut,
	}
}
