package mrcp

import (
	"strings"
)

// Version версия протокола в стартовой строке
const Version = "MRCP/2.0"

// Методы
const (
	MethodSpeak         = "SPEAK"
	MethodStop          = "STOP"
	MethodDefineGrammar = "DEFINE-GRAMMAR"
	MethodRecognize     = "RECOGNIZE"
)

// События
const (
	EventSpeakComplete       = "SPEAK-COMPLETE"
	EventSpeechMarker        = "SPEECH-MARKER"
	EventRecognitionComplete = "RECOGNITION-COMPLETE"
	EventStartOfInput        = "START-OF-INPUT"
)

// Состояния запроса
const (
	StateComplete   = "COMPLETE"
	StateInProgress = "IN-PROGRESS"
	StatePending    = "PENDING"
)

// Заголовки
const (
	HeaderChannelIdentifier = "Channel-Identifier"
	HeaderContentType       = "Content-Type"
	HeaderContentLength     = "Content-Length"
	HeaderContentID         = "Content-ID"
	HeaderSpeechLanguage    = "Speech-Language"
	HeaderVoiceName         = "Voice-Name"
	HeaderCompletionCause   = "Completion-Cause"
	HeaderNoInputTimeout    = "No-Input-Timeout"
	HeaderConfidence        = "Confidence-Threshold"
)

// Kind тип сообщения
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Header один заголовок сообщения
type Header struct {
	Name  string
	Value string
}

// Headers упорядоченный список заголовков
type Headers []Header

// Get возвращает значение первого заголовка с именем name без учета регистра
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Has проверяет наличие заголовка
func (h Headers) Has(name string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return true
		}
	}
	return false
}

// Add добавляет заголовок в конец
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Merge добавляет заголовки из extra, которых еще нет в h
func (h Headers) Merge(extra Headers) Headers {
	out := append(Headers(nil), h...)
	for _, hdr := range extra {
		if !out.Has(hdr.Name) {
			out = append(out, hdr)
		}
	}
	return out
}

// ParseHeaderLines разбирает строки вида "Name: value", разделенные переводом строки.
// Пустые строки пропускаются, строки без двоеточия возвращают ошибку.
func ParseHeaderLines(text string) (Headers, error) {
	var out Headers
	text = strings.ReplaceAll(text, `\n`, "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, malformedf("bad header line %q", line)
		}
		out.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return out, nil
}

// Message разобранное сообщение MRCPv2
type Message struct {
	Kind         Kind
	Length       int
	Method       string // для запросов
	EventName    string // для событий
	RequestID    uint32
	StatusCode   int    // для ответов
	RequestState string // для ответов и событий
	Headers      Headers
	Body         []byte
}

// Name возвращает метод или имя события
func (m *Message) Name() string {
	if m.Kind == KindEvent {
		return m.EventName
	}
	return m.Method
}

// IsSuccess true для ответа с кодом 2xx
func (m *Message) IsSuccess() bool {
	return m.Kind == KindResponse && m.StatusCode >= 200 && m.StatusCode < 300
}
