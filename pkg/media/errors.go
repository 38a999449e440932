package media

import (
	"errors"
	"fmt"
)

// MediaErrorCode определяет типизированные коды ошибок для медиа слоя.
type MediaErrorCode int

const (
	// Ошибки аудио
	ErrorCodeAudioSizeInvalid MediaErrorCode = iota + 1000
	ErrorCodeAudioCodecUnsupported
	ErrorCodeAudioFormatInvalid

	// Ошибки моста
	ErrorCodeBridgeAlreadyStarted
	ErrorCodeBridgeStopped
	ErrorCodeBridgeSendFailed

	// Ошибки источников и приемников
	ErrorCodeSourceOpenFailed
	ErrorCodeSinkWriteFailed
)

// String возвращает строковое представление кода ошибки
func (code MediaErrorCode) String() string {
	switch code {
	case ErrorCodeAudioSizeInvalid:
		return "AudioSizeInvalid"
	case ErrorCodeAudioCodecUnsupported:
		return "AudioCodecUnsupported"
	case ErrorCodeAudioFormatInvalid:
		return "AudioFormatInvalid"
	case ErrorCodeBridgeAlreadyStarted:
		return "BridgeAlreadyStarted"
	case ErrorCodeBridgeStopped:
		return "BridgeStopped"
	case ErrorCodeBridgeSendFailed:
		return "BridgeSendFailed"
	case ErrorCodeSourceOpenFailed:
		return "SourceOpenFailed"
	case ErrorCodeSinkWriteFailed:
		return "SinkWriteFailed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// MediaError базовая структура ошибок медиа слоя.
// Содержит типизированный код, контекст и обернутую причину.
type MediaError struct {
	Code    MediaErrorCode
	Message string
	Context map[string]interface{}
	Wrapped error
}

// Error реализует интерфейс error.
func (e *MediaError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[медиа:%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[медиа:%s] %s", e.Code, e.Message)
}

// Unwrap возвращает обернутую ошибку.
func (e *MediaError) Unwrap() error {
	return e.Wrapped
}

// Is позволяет сравнивать ошибки по коду.
func (e *MediaError) Is(target error) bool {
	if t, ok := target.(*MediaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext добавляет значение в контекст ошибки.
func (e *MediaError) WithContext(key string, value interface{}) *MediaError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewMediaError создает ошибку медиа слоя без причины
func NewMediaError(code MediaErrorCode, message string) *MediaError {
	return &MediaError{Code: code, Message: message}
}

// WrapMediaError оборачивает существующую ошибку в MediaError
func WrapMediaError(code MediaErrorCode, message string, err error) *MediaError {
	return &MediaError{Code: code, Message: message, Wrapped: err}
}

// HasErrorCode проверяет, содержит ли цепочка ошибок указанный код
func HasErrorCode(err error, code MediaErrorCode) bool {
	var mediaErr *MediaError
	if errors.As(err, &mediaErr) {
		return mediaErr.Code == code
	}
	return false
}
