package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"

	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// Config параметры сценария сессии
type Config struct {
	Resource media_sdp.Resource
	Offer    []byte

	// Grammar DEFINE-GRAMMAR перед командой, только для распознавания
	Grammar mrcp.Command
	// Command SPEAK или RECOGNIZE
	Command mrcp.Command

	DrainDelay time.Duration
	GraceDelay time.Duration

	Logger *slog.Logger
}

// Validate проверяет сценарий
func (c Config) Validate() error {
	if !c.Resource.Valid() {
		return errors.Errorf("unsupported resource %q", c.Resource)
	}
	if c.Command == nil {
		return errors.New("command is required")
	}
	if c.Grammar != nil && c.Resource != media_sdp.ResourceSpeechRecog {
		return errors.Errorf("grammar is not applicable to %s", c.Resource)
	}
	return nil
}

// Machine автомат сессии: переход (состояние, событие) -> (состояние, действия).
// Ввода-вывода не выполняет.
type Machine struct {
	cfg    Config
	fsm    *fsm.FSM
	logger *slog.Logger

	pendingID     uint32
	pendingMethod string

	streaming bool
	draining  bool
	hangup    bool
}

// NewMachine создает автомат в состоянии INIT
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:    cfg,
		fsm:    newStateMachine(logger),
		logger: logger,
	}, nil
}

// State текущее состояние
func (m *Machine) State() State {
	return State(m.fsm.Current())
}

// Handle применяет событие. В терминальном состоянии события игнорируются.
func (m *Machine) Handle(ev Event) ([]Action, error) {
	state := m.State()
	if state.IsTerminal() {
		m.logger.Debug("session: event after finish", slog.String("event", ev.eventName()))
		return nil, nil
	}

	switch e := ev.(type) {
	case TimeoutFired:
		code := CodeDeadline
		if errors.Is(e.Cause, context.Canceled) {
			code = CodeCancelled
		}
		return m.fail(NewError(CategoryTimeout, code, "session deadline elapsed", e.Cause))
	case TransportFailure:
		return m.onTransportFailure(state, asSessionError(e.Err))
	case RemoteBye:
		return m.onRemoteBye(state)
	}

	if m.hangup {
		if _, ok := ev.(GraceElapsed); ok {
			return m.terminate()
		}
		m.logger.Debug("session: event during hangup ignored", slog.String("event", ev.eventName()))
		return nil, nil
	}

	switch e := ev.(type) {
	case Start:
		if state == StateInit {
			return m.to(StateInviting, SendInvite{Offer: m.cfg.Offer})
		}
	case InviteResponse:
		if state == StateInviting {
			return m.onInviteResponse(e)
		}
		m.logger.Warn("session: extra INVITE response ignored", slog.Int("status", e.Response.Status))
		return nil, nil
	case MediaReady:
		if state == StateChannelReady {
			if m.cfg.Grammar != nil {
				return m.to(StateGrammarPending, SendCommand{Command: m.cfg.Grammar})
			}
			return m.to(StateCommandPending, SendCommand{Command: m.cfg.Command})
		}
	case CommandIssued:
		if state == StateGrammarPending || state == StateCommandPending {
			m.pendingID = e.RequestID
			m.pendingMethod = e.Method
			return nil, nil
		}
	case MRCPResponse:
		return m.onResponse(state, e.Outcome)
	case MRCPEvent:
		return m.onEvent(state, e.Message)
	case DrainElapsed:
		if state == StateStreaming && m.draining {
			return m.complete()
		}
	case ByeResponse:
		if state == StateCompleting {
			m.logger.Info("session: BYE answered", slog.Int("status", e.Status), slog.String("reason", e.Reason))
			return m.terminate()
		}
	}

	m.logger.Debug("session: event ignored",
		slog.String("state", state.String()),
		slog.String("event", ev.eventName()))
	return nil, nil
}

func (m *Machine) onInviteResponse(e InviteResponse) ([]Action, error) {
	resp := e.Response
	switch {
	case resp.Status < 200:
		m.logger.Info("session: call progress", slog.Int("status", resp.Status), slog.String("reason", resp.Reason))
		return nil, nil
	case resp.Status >= 300:
		return m.fail(NewError(CategoryTransport, CodeInviteRejected,
			fmt.Sprintf("call failed with status %d %s", resp.Status, resp.Reason), nil))
	}

	m.logger.Info("session: call answered", slog.String("toTag", resp.ToTag))
	actions := []Action{SendAck{Response: resp}}
	if err := m.transition(StateEstablished); err != nil {
		return nil, err
	}
	if err := m.transition(StateNegotiatingSDP); err != nil {
		return nil, err
	}

	answer, err := media_sdp.Negotiate(resp.Body)
	if err != nil {
		failed, ferr := m.fail(NewError(CategoryNegotiation, CodeSDPMismatch, "SDP answer does not match offer", err))
		return append(actions, failed...), ferr
	}
	m.logger.Info("session: answer matched",
		slog.String("channel", answer.Channel),
		slog.String("remoteIP", answer.RemoteIP),
		slog.Int("mrcpPort", answer.RemoteMRCPPort),
		slog.Int("rtpPort", answer.RemoteRTPPort))

	if err := m.transition(StateChannelReady); err != nil {
		return nil, err
	}
	return append(actions, SetupMedia{Answer: answer}), nil
}

func (m *Machine) onResponse(state State, out mrcp.Outcome) ([]Action, error) {
	if state != StateGrammarPending && state != StateCommandPending {
		m.logger.Debug("session: response outside command phase", slog.Uint64("requestID", uint64(out.RequestID)))
		return nil, nil
	}
	if m.pendingID == 0 || out.RequestID != m.pendingID {
		m.logger.Warn("session: response for stale request",
			slog.Uint64("requestID", uint64(out.RequestID)),
			slog.Uint64("pending", uint64(m.pendingID)))
		return nil, nil
	}

	method := m.pendingMethod
	m.pendingID, m.pendingMethod = 0, ""
	if out.Status < 200 || out.Status >= 300 {
		return m.fail(NewError(CategoryCommand, CodeCommandFailed,
			fmt.Sprintf("%s failed with status %d", method, out.Status), nil))
	}

	if state == StateGrammarPending {
		return m.to(StateCommandPending, SendCommand{Command: m.cfg.Command})
	}
	m.streaming = true
	return m.to(StateStreaming, StartStreaming{Resource: m.cfg.Resource})
}

func (m *Machine) onEvent(state State, msg *mrcp.Message) ([]Action, error) {
	name := msg.EventName
	switch {
	case state == StateCompleting || m.draining:
		m.logger.Debug("session: event after completion", slog.String("event", name))
		return nil, nil
	case m.informational(name):
		m.logger.Info("session: event", slog.String("event", name))
		return nil, nil
	case state == StateStreaming && name == m.completionEvent():
		return m.onCompletion(msg)
	}

	m.logger.Error("session: unexpected event",
		slog.String("state", state.String()),
		slog.String("event", name),
		slog.String("body", string(msg.Body)))
	return m.fail(NewError(CategoryCommand, CodeUnexpectedEvent,
		fmt.Sprintf("unexpected event %s in %s", name, state), nil))
}

func (m *Machine) onCompletion(msg *mrcp.Message) ([]Action, error) {
	report := ReportResult{Event: msg}
	if m.cfg.Resource == media_sdp.ResourceSpeechSynth {
		m.draining = true
		return []Action{report, ScheduleDrain{Delay: m.cfg.DrainDelay}}, nil
	}
	actions, err := m.complete()
	return append([]Action{report}, actions...), err
}

// complete останавливает мост и начинает BYE
func (m *Machine) complete() ([]Action, error) {
	m.draining = false
	m.streaming = false
	return m.to(StateCompleting, StopStreaming{}, SendBye{})
}

func (m *Machine) onRemoteBye(state State) ([]Action, error) {
	if !state.IsEstablished() || m.hangup {
		m.logger.Debug("session: remote BYE ignored", slog.String("state", state.String()))
		return nil, nil
	}
	m.logger.Info("session: remote hangup", slog.String("state", state.String()))
	m.hangup = true

	var actions []Action
	if m.streaming {
		m.streaming = false
		actions = append(actions, StopStreaming{})
	}
	return append(actions, ScheduleGrace{Delay: m.cfg.GraceDelay}), nil
}

// onTransportFailure после входящего BYE отказы транспорта не меняют исход.
// В паузе перед BYE и в COMPLETING игнорируется обрыв MRCP или RTP, отказ SIP
// означает отказ BYE.
func (m *Machine) onTransportFailure(state State, err *Error) ([]Action, error) {
	closing := m.draining || state == StateCompleting
	if m.hangup || (closing && err.Code != CodeSIPTransport) {
		m.logger.Warn("session: transport failure during hangup ignored",
			slog.String("state", state.String()),
			slog.String("code", err.Code),
			slog.Any("error", err))
		return nil, nil
	}
	return m.fail(err)
}

func (m *Machine) terminate() ([]Action, error) {
	return m.to(StateTerminated, Finish{ExitCode: 0})
}

func (m *Machine) fail(err *Error) ([]Action, error) {
	var actions []Action
	if m.streaming {
		m.streaming = false
		actions = append(actions, StopStreaming{})
	}
	if terr := m.transition(StateFailed); terr != nil {
		return nil, terr
	}
	m.logger.Error("session: failed",
		slog.String("category", string(err.Category)),
		slog.String("code", err.Code),
		slog.Any("error", err))
	return append(actions, Finish{ExitCode: 1, Err: err}), nil
}

func (m *Machine) to(state State, actions ...Action) ([]Action, error) {
	if err := m.transition(state); err != nil {
		return nil, err
	}
	return actions, nil
}

func (m *Machine) transition(state State) error {
	if err := m.fsm.Event(context.Background(), transitionEvent(state)); err != nil {
		return errors.Wrapf(err, "transition %s -> %s", m.fsm.Current(), state)
	}
	return nil
}

func (m *Machine) completionEvent() string {
	if m.cfg.Resource == media_sdp.ResourceSpeechSynth {
		return mrcp.EventSpeakComplete
	}
	return mrcp.EventRecognitionComplete
}

// informational события, допустимые в любой фазе ресурса
func (m *Machine) informational(name string) bool {
	if m.cfg.Resource == media_sdp.ResourceSpeechSynth {
		return name == mrcp.EventSpeechMarker
	}
	return name == mrcp.EventStartOfInput
}
