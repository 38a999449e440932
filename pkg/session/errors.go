package session

import (
	"errors"
	"fmt"
)

// Category класс фатальной ошибки сессии. Все категории терминальны, повторов нет.
type Category string

const (
	CategoryNegotiation Category = "NEGOTIATION"
	CategoryCommand     Category = "COMMAND"
	CategoryTransport   Category = "TRANSPORT"
	CategoryResource    Category = "RESOURCE"
	CategoryTimeout     Category = "TIMEOUT"
)

// Коды ошибок
const (
	CodeInviteRejected  = "INVITE_REJECTED"
	CodeSDPMismatch     = "SDP_MISMATCH"
	CodeCommandFailed   = "COMMAND_FAILED"
	CodeUnexpectedEvent = "UNEXPECTED_EVENT"
	CodeSIPTransport    = "SIP_TRANSPORT"
	CodeMRCPTransport   = "MRCP_TRANSPORT"
	CodeRTPTransport    = "RTP_TRANSPORT"
	CodePortExhausted   = "PORT_EXHAUSTED"
	CodeDeadline        = "DEADLINE"
	CodeCancelled       = "CANCELLED"
	CodeInternal        = "INTERNAL"
)

// Error фатальная ошибка сессии
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError создает ошибку сессии
func NewError(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}

// TransportError ошибка сокета или соединения SIP, MRCP или RTP
func TransportError(code, message string, cause error) *Error {
	return NewError(CategoryTransport, code, message, cause)
}

// CategoryOf возвращает категорию ошибки сессии в цепочке
func CategoryOf(err error) (Category, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Category, true
	}
	return "", false
}

// asSessionError приводит произвольную ошибку к *Error
func asSessionError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return NewError(CategoryTransport, CodeInternal, "unclassified failure", err)
}
