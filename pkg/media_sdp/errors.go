package media_sdp

import (
	"errors"
	"fmt"
)

// ErrorCode код ошибки согласования SDP
type ErrorCode int

const (
	ErrorCodeSDPGeneration ErrorCode = iota + 2000
	ErrorCodeSDPParsing
	ErrorCodeNoConnection
	ErrorCodeNoControlMedia
	ErrorCodeNoChannel
	ErrorCodeNoAudioMedia
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeSDPGeneration:
		return "SDPGeneration"
	case ErrorCodeSDPParsing:
		return "SDPParsing"
	case ErrorCodeNoConnection:
		return "NoConnection"
	case ErrorCodeNoControlMedia:
		return "NoControlMedia"
	case ErrorCodeNoChannel:
		return "NoChannel"
	case ErrorCodeNoAudioMedia:
		return "NoAudioMedia"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// NegotiationError ошибка построения offer или разбора answer.
// Для сессии любая такая ошибка фатальна.
type NegotiationError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

func (e *NegotiationError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[sdp:%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[sdp:%s] %s", e.Code, e.Message)
}

func (e *NegotiationError) Unwrap() error {
	return e.Wrapped
}

func newNegotiationError(code ErrorCode, message string) *NegotiationError {
	return &NegotiationError{Code: code, Message: message}
}

func wrapNegotiationError(code ErrorCode, message string, err error) *NegotiationError {
	return &NegotiationError{Code: code, Message: message, Wrapped: err}
}

// IsNegotiationError проверяет, что в цепочке есть ошибка согласования
func IsNegotiationError(err error) bool {
	var ne *NegotiationError
	return errors.As(err, &ne)
}
