package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	resampling "github.com/tphakala/go-audio-resampling"
)

// TargetSampleRate частота дискретизации телефонного тракта
const TargetSampleRate = 8000

// OpenSource открывает источник исходящего аудио в формате μ-law 8 кГц.
//
// Файлы .wav декодируются: PCM16 любой частоты сводится в моно и передискретизируется
// в 8 кГц, μ-law 8 кГц моно передается как есть. Остальные файлы считаются сырым μ-law.
// Пустой путь возвращает nil: мост будет отправлять только тишину.
func OpenSource(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapMediaError(ErrorCodeSourceOpenFailed, "ошибка открытия аудио файла", err).
			WithContext("path", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return f, nil
	}
	defer f.Close()

	format, data, err := ReadWAV(f)
	if err != nil {
		return nil, err
	}
	ulaw, err := WAVToMulaw(format, data)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(ulaw)), nil
}

// WAVToMulaw приводит содержимое WAV к μ-law 8 кГц моно.
func WAVToMulaw(format WAVFormat, data []byte) ([]byte, error) {
	switch {
	case format.AudioFormat == wavFormatMulaw:
		if format.SampleRate != TargetSampleRate || format.Channels != 1 {
			return nil, NewMediaError(ErrorCodeAudioFormatInvalid,
				fmt.Sprintf("μ-law WAV должен быть 8000 Гц моно, получено %d Гц, %d каналов", format.SampleRate, format.Channels))
		}
		return data, nil
	case format.AudioFormat == wavFormatPCM && format.BitsPerSample == 16:
	default:
		return nil, NewMediaError(ErrorCodeAudioCodecUnsupported,
			fmt.Sprintf("неподдерживаемый WAV: format=%d bits=%d", format.AudioFormat, format.BitsPerSample))
	}
	if format.Channels == 0 || format.SampleRate == 0 {
		return nil, NewMediaError(ErrorCodeAudioFormatInvalid, "WAV без каналов или частоты")
	}

	if format.Channels == 1 && format.SampleRate == TargetSampleRate {
		return encodeFrames(data)
	}

	samples := downmix(data, int(format.Channels))
	if format.SampleRate != TargetSampleRate {
		var err error
		samples, err = resample(samples, float64(format.SampleRate), TargetSampleRate)
		if err != nil {
			return nil, err
		}
	}
	return encodeFrames(samplesToPCM(samples))
}

// downmix преобразует PCM16LE с несколькими каналами в моно float64 [-1, 1).
func downmix(data []byte, channels int) []float64 {
	frameBytes := 2 * channels
	frames := len(data) / frameBytes
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			sum += float64(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		out[i] = sum / float64(channels) / 32768.0
	}
	return out
}

func resample(samples []float64, from, to float64) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  from,
		OutputRate: to,
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "ошибка создания ресемплера", err)
	}
	// хвост из тишины выталкивает задержку фильтра
	padded := append(samples, make([]float64, int(from/10))...)
	out, err := r.Process(padded)
	if err != nil {
		return nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "ошибка передискретизации", err)
	}
	want := int(float64(len(samples)) * to / from)
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

func samplesToPCM(samples []float64) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

// encodeFrames кодирует PCM покадрово через AudioProcessor, неполный хвост кодируется отдельно.
func encodeFrames(pcm []byte) ([]byte, error) {
	processor, err := NewAudioProcessor(DefaultAudioProcessorConfig())
	if err != nil {
		return nil, err
	}
	frameBytes := processor.SamplesPerFrame() * 2
	out := make([]byte, 0, len(pcm)/2)
	for len(pcm) >= frameBytes {
		frame, err := processor.ProcessOutgoing(pcm[:frameBytes])
		if err != nil {
			return nil, err
		}
		out = append(out, frame...)
		pcm = pcm[frameBytes:]
	}
	return append(out, EncodeMulaw(pcm)...), nil
}
