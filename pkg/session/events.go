package session

import (
	"time"

	"github.com/arzzra/mrcp_client/pkg/dialog"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// Event входное событие автомата
type Event interface {
	eventName() string
}

// Start запуск сессии
type Start struct{}

// InviteResponse ответ на INVITE, включая предварительные
type InviteResponse struct {
	Response *dialog.Response
}

// MediaReady удаленный RTP адрес установлен, MRCP соединение открыто
type MediaReady struct{}

// CommandIssued команда отправлена и получила идентификатор
type CommandIssued struct {
	RequestID uint32
	Method    string
}

// MRCPResponse ответ, сопоставленный с ожидающим запросом
type MRCPResponse struct {
	Outcome mrcp.Outcome
}

// MRCPEvent событие сервера MRCP
type MRCPEvent struct {
	Message *mrcp.Message
}

// DrainElapsed истекла задержка дослушивания синтеза
type DrainElapsed struct{}

// RemoteBye сервер завершил диалог, 200 OK уже отправлен
type RemoteBye struct{}

// GraceElapsed истекла задержка после удаленного BYE
type GraceElapsed struct{}

// ByeResponse финальный ответ на локальный BYE
type ByeResponse struct {
	Status int
	Reason string
}

// TransportFailure отказ SIP, MRCP или RTP
type TransportFailure struct {
	Err error
}

// TimeoutFired истек срок сессии или она отменена
type TimeoutFired struct {
	Cause error
}

func (Start) eventName() string            { return "Start" }
func (InviteResponse) eventName() string   { return "InviteResponse" }
func (MediaReady) eventName() string       { return "MediaReady" }
func (CommandIssued) eventName() string    { return "CommandIssued" }
func (MRCPResponse) eventName() string     { return "MRCPResponse" }
func (MRCPEvent) eventName() string        { return "MRCPEvent" }
func (DrainElapsed) eventName() string     { return "DrainElapsed" }
func (RemoteBye) eventName() string        { return "RemoteBye" }
func (GraceElapsed) eventName() string     { return "GraceElapsed" }
func (ByeResponse) eventName() string      { return "ByeResponse" }
func (TransportFailure) eventName() string { return "TransportFailure" }
func (TimeoutFired) eventName() string     { return "TimeoutFired" }

// Action действие, которое исполнитель выполняет после перехода
type Action interface {
	actionName() string
}

// SendInvite отправить INVITE с offer
type SendInvite struct {
	Offer []byte
}

// SendAck подтвердить 2xx
type SendAck struct {
	Response *dialog.Response
}

// SetupMedia установить удаленный RTP адрес и открыть MRCP соединение
type SetupMedia struct {
	Answer media_sdp.Answer
}

// SendCommand отправить MRCP запрос
type SendCommand struct {
	Command mrcp.Command
}

// StartStreaming запустить аудио мост в направлении ресурса
type StartStreaming struct {
	Resource media_sdp.Resource
}

// StopStreaming остановить аудио мост
type StopStreaming struct{}

// ScheduleDrain запланировать DrainElapsed
type ScheduleDrain struct {
	Delay time.Duration
}

// ScheduleGrace запланировать GraceElapsed
type ScheduleGrace struct {
	Delay time.Duration
}

// SendBye отправить BYE
type SendBye struct{}

// ReportResult вывести итог команды
type ReportResult struct {
	Event *mrcp.Message
}

// Finish сессия завершена
type Finish struct {
	ExitCode int
	Err      error
}

func (SendInvite) actionName() string     { return "SendInvite" }
func (SendAck) actionName() string        { return "SendAck" }
func (SetupMedia) actionName() string     { return "SetupMedia" }
func (SendCommand) actionName() string    { return "SendCommand" }
func (StartStreaming) actionName() string { return "StartStreaming" }
func (StopStreaming) actionName() string  { return "StopStreaming" }
func (ScheduleDrain) actionName() string  { return "ScheduleDrain" }
func (ScheduleGrace) actionName() string  { return "ScheduleGrace" }
func (SendBye) actionName() string        { return "SendBye" }
func (ReportResult) actionName() string   { return "ReportResult" }
func (Finish) actionName() string         { return "Finish" }
