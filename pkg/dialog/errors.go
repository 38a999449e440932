package dialog

import (
	"errors"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// ErrNoFinalResponse транзакция завершилась без финального ответа
var ErrNoFinalResponse = errors.New("transaction terminated without final response")

// ErrorCategory категория ошибки диалога
type ErrorCategory string

const (
	ErrorCategoryTransport ErrorCategory = "TRANSPORT"
	ErrorCategoryState     ErrorCategory = "STATE"
)

// DialogError ошибка операции над диалогом
type DialogError struct {
	Category ErrorCategory
	Method   sip.RequestMethod
	CallID   string
	Message  string
	Cause    error
}

// Error реализует интерфейс error
func (e *DialogError) Error() string {
	msg := fmt.Sprintf("[%s] %s %s", e.Category, e.Method, e.Message)
	if e.CallID != "" {
		msg += " (Call-ID: " + e.CallID + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DialogError) Unwrap() error {
	return e.Cause
}

func newTransportError(method sip.RequestMethod, callID string, cause error) *DialogError {
	return &DialogError{
		Category: ErrorCategoryTransport,
		Method:   method,
		CallID:   callID,
		Message:  "transaction failed",
		Cause:    cause,
	}
}

func newStateError(method sip.RequestMethod, callID, message string) *DialogError {
	return &DialogError{
		Category: ErrorCategoryState,
		Method:   method,
		CallID:   callID,
		Message:  message,
	}
}

// IsCategory проверяет категорию ошибки в цепочке
func IsCategory(err error, category ErrorCategory) bool {
	var de *DialogError
	return errors.As(err, &de) && de.Category == category
}
