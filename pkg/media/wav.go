package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	wavFormatPCM   = 1
	wavFormatMulaw = 7
)

// WAVFormat параметры аудио из fmt чанка
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ReadWAV разбирает RIFF/WAVE и возвращает формат и содержимое data чанка.
// Неизвестные чанки пропускаются.
func ReadWAV(r io.Reader) (WAVFormat, []byte, error) {
	var format WAVFormat

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return format, nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "не удалось прочитать заголовок RIFF", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return format, nil, NewMediaError(ErrorCodeAudioFormatInvalid, "файл не является RIFF/WAVE")
	}

	haveFormat := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return format, nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "data чанк не найден", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return format, nil, NewMediaError(ErrorCodeAudioFormatInvalid, fmt.Sprintf("короткий fmt чанк: %d", size))
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return format, nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "не удалось прочитать fmt чанк", err)
			}
			format.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			format.Channels = binary.LittleEndian.Uint16(body[2:4])
			format.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			format.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFormat = true
		case "data":
			if !haveFormat {
				return format, nil, NewMediaError(ErrorCodeAudioFormatInvalid, "data чанк перед fmt")
			}
			data, err := io.ReadAll(io.LimitReader(r, int64(size)))
			if err != nil {
				return format, nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "не удалось прочитать data чанк", err)
			}
			return format, data, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return format, nil, WrapMediaError(ErrorCodeAudioFormatInvalid, "обрезанный чанк "+id, err)
			}
		}
	}
}

// WriteWAV записывает PCM16LE моно в WAV контейнер.
func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(pcm))

	w := bufio.NewWriter(out)
	w.WriteString("RIFF")
	binary.Write(w, binary.LittleEndian, uint32(36)+dataSize)
	w.WriteString("WAVEfmt ")
	binary.Write(w, binary.LittleEndian, uint32(16))
	binary.Write(w, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(w, binary.LittleEndian, uint16(channels))
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))
	binary.Write(w, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	binary.Write(w, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(w, binary.LittleEndian, uint16(bitsPerSample))
	w.WriteString("data")
	binary.Write(w, binary.LittleEndian, dataSize)
	w.Write(pcm)
	// bufio.Writer запоминает первую ошибку и возвращает ее из Flush
	return w.Flush()
}

// WAVRecorder накапливает PCM16LE 8 кГц и записывает WAV файл при Close.
type WAVRecorder struct {
	path       string
	sampleRate int

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewWAVRecorder создает рекордер. Файл создается только при Close.
func NewWAVRecorder(path string, sampleRate int) *WAVRecorder {
	if sampleRate <= 0 {
		sampleRate = 8000
	}
	return &WAVRecorder{path: path, sampleRate: sampleRate}
}

// Write реализует io.Writer
func (r *WAVRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, os.ErrClosed
	}
	return r.buf.Write(p)
}

// Close записывает файл. Повторный вызов ничего не делает.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	f, err := os.Create(r.path)
	if err != nil {
		return WrapMediaError(ErrorCodeSinkWriteFailed, "ошибка создания файла записи", err)
	}
	if err := WriteWAV(f, r.buf.Bytes(), r.sampleRate); err != nil {
		f.Close()
		return WrapMediaError(ErrorCodeSinkWriteFailed, "ошибка записи WAV", err)
	}
	return f.Close()
}

// Len количество накопленных байт PCM
func (r *WAVRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}
