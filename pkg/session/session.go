package session

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/arzzra/mrcp_client/pkg/dialog"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// Signaling SIP диалог сессии
type Signaling interface {
	Invite(ctx context.Context, offer []byte, onResponse dialog.ResponseFunc, onError dialog.ErrorFunc) error
	Ack(resp *dialog.Response) error
	Bye(ctx context.Context, onResponse dialog.ResponseFunc, onError dialog.ErrorFunc) error
	CallID() string
}

// ControlConn управляющее соединение MRCP
type ControlConn interface {
	mrcp.Writer
	Close() error
}

// ControlDialer открывает соединение MRCP. Обработчик вызывается из горутины чтения.
type ControlDialer func(ctx context.Context, addr string, handler mrcp.Handler) (ControlConn, error)

// Media RTP поток и аудио мост
type Media interface {
	SetRemote(ip string, port int) error
	// StartSending исходящий поток кадров, распознавание
	StartSending() error
	// StartReceiving прием и воспроизведение, синтез
	StartReceiving() error
	// Stop идемпотентен
	Stop()
}

// Deps внешние участники сессии
type Deps struct {
	Signaling Signaling
	Dial      ControlDialer
	Media     Media
	// Report получает событие завершения команды
	Report func(msg *mrcp.Message)
	Logger *slog.Logger
}

// Result итог сессии
type Result struct {
	State    State
	ExitCode int
	Err      error
}

// controlMessage сообщение MRCP до сопоставления с запросом
type controlMessage struct {
	msg *mrcp.Message
}

func (controlMessage) eventName() string { return "controlMessage" }

// Session исполнитель автомата: единственная горутина Run обрабатывает
// события участников и выполняет действия автомата.
type Session struct {
	machine *Machine
	deps    Deps
	logger  *slog.Logger

	events chan Event
	done   chan struct{}

	correlator *mrcp.Correlator
	control    ControlConn
	timers     []*time.Timer
	result     *Result
}

// New создает сессию
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Signaling == nil || deps.Dial == nil || deps.Media == nil {
		return nil, errors.New("signaling, dialer and media are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("call_id", deps.Signaling.CallID()))
	cfg.Logger = logger

	machine, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{
		machine: machine,
		deps:    deps,
		logger:  logger,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}, nil
}

// State текущее состояние автомата. Только для горутины Run или после ее завершения.
func (s *Session) State() State {
	return s.machine.State()
}

// Post передает событие в сессию. После завершения Run событие отбрасывается.
func (s *Session) Post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run выполняет сессию до TERMINATED или FAILED.
// Истечение ctx завершает сессию без BYE.
func (s *Session) Run(ctx context.Context) Result {
	defer func() {
		close(s.done)
		s.cleanup()
	}()

	s.dispatch(ctx, Start{})
	for s.result == nil {
		select {
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		case <-ctx.Done():
			s.dispatch(ctx, TimeoutFired{Cause: ctx.Err()})
		}
	}
	return *s.result
}

// dispatch применяет событие и выполняет действия. Последствия действий
// обрабатываются в той же итерации в порядке появления.
func (s *Session) dispatch(ctx context.Context, ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 && s.result == nil {
		ev, queue = queue[0], queue[1:]

		if cm, ok := ev.(controlMessage); ok {
			if next := s.correlate(cm.msg); next != nil {
				queue = append(queue, next)
			}
			continue
		}

		actions, err := s.machine.Handle(ev)
		if err != nil {
			s.logger.Error("session: invalid transition", slog.String("event", ev.eventName()), slog.Any("error", err))
			s.finish(Finish{ExitCode: 1, Err: NewError(CategoryTransport, CodeInternal, "invalid transition", err)})
			return
		}
		for _, action := range actions {
			if next := s.execute(ctx, action); next != nil {
				queue = append(queue, next)
			}
		}
	}
}

func (s *Session) execute(ctx context.Context, action Action) Event {
	s.logger.Debug("session: action", slog.String("action", action.actionName()))

	switch a := action.(type) {
	case SendInvite:
		err := s.deps.Signaling.Invite(ctx, a.Offer,
			func(resp *dialog.Response) { s.Post(InviteResponse{Response: resp}) },
			func(err error) { s.Post(TransportFailure{Err: TransportError(CodeSIPTransport, "INVITE failed", err)}) })
		if err != nil {
			return TransportFailure{Err: TransportError(CodeSIPTransport, "INVITE failed", err)}
		}
	case SendAck:
		if err := s.deps.Signaling.Ack(a.Response); err != nil {
			return TransportFailure{Err: TransportError(CodeSIPTransport, "ACK failed", err)}
		}
	case SetupMedia:
		return s.setupMedia(ctx, a.Answer)
	case SendCommand:
		id, err := s.correlator.Send(a.Command)
		if err != nil {
			return TransportFailure{Err: TransportError(CodeMRCPTransport, a.Command.Method()+" failed", err)}
		}
		return CommandIssued{RequestID: id, Method: a.Command.Method()}
	case StartStreaming:
		start := s.deps.Media.StartSending
		if a.Resource == media_sdp.ResourceSpeechSynth {
			start = s.deps.Media.StartReceiving
		}
		if err := start(); err != nil {
			return TransportFailure{Err: TransportError(CodeRTPTransport, "audio bridge failed", err)}
		}
	case StopStreaming:
		s.deps.Media.Stop()
	case ScheduleDrain:
		s.schedule(a.Delay, DrainElapsed{})
	case ScheduleGrace:
		s.schedule(a.Delay, GraceElapsed{})
	case SendBye:
		err := s.deps.Signaling.Bye(ctx,
			func(resp *dialog.Response) { s.Post(ByeResponse{Status: resp.Status, Reason: resp.Reason}) },
			func(err error) { s.Post(TransportFailure{Err: TransportError(CodeSIPTransport, "BYE failed", err)}) })
		if err != nil {
			return TransportFailure{Err: TransportError(CodeSIPTransport, "BYE failed", err)}
		}
	case ReportResult:
		if s.deps.Report != nil {
			s.deps.Report(a.Event)
		}
	case Finish:
		s.finish(a)
	}
	return nil
}

func (s *Session) setupMedia(ctx context.Context, answer media_sdp.Answer) Event {
	if err := s.deps.Media.SetRemote(answer.RemoteRTPIP, answer.RemoteRTPPort); err != nil {
		return TransportFailure{Err: TransportError(CodeRTPTransport, "invalid remote RTP endpoint", err)}
	}

	addr := net.JoinHostPort(answer.RemoteIP, strconv.Itoa(answer.RemoteMRCPPort))
	conn, err := s.deps.Dial(ctx, addr, mrcp.HandlerFuncs{
		Message: func(msg *mrcp.Message) { s.Post(controlMessage{msg: msg}) },
		Error: func(err error) {
			s.Post(TransportFailure{Err: TransportError(CodeMRCPTransport, "MRCP connection error", err)})
		},
		Close: func() { s.logger.Info("session: MRCP connection closed by server") },
	})
	if err != nil {
		return TransportFailure{Err: TransportError(CodeMRCPTransport, "MRCP connect failed", err)}
	}
	s.control = conn
	s.correlator = mrcp.NewCorrelator(conn, answer.Channel, s.logger)
	return MediaReady{}
}

// correlate сопоставляет сообщение с ожидающим запросом
func (s *Session) correlate(msg *mrcp.Message) Event {
	if s.correlator == nil {
		return nil
	}
	out := s.correlator.OnMessage(msg)
	switch out.Kind {
	case mrcp.OutcomeResolved:
		observeResponse(out.Method, out.Status, out.Latency.Seconds())
		return MRCPResponse{Outcome: out}
	case mrcp.OutcomeEvent:
		return MRCPEvent{Message: msg}
	case mrcp.OutcomeUnexpected:
		s.logger.Warn("session: unexpected MRCP response",
			slog.Uint64("requestID", uint64(out.RequestID)),
			slog.Int("status", out.Status))
	default:
		s.logger.Debug("session: MRCP message ignored", slog.String("kind", msg.Kind.String()))
	}
	return nil
}

func (s *Session) schedule(delay time.Duration, ev Event) {
	s.timers = append(s.timers, time.AfterFunc(delay, func() { s.Post(ev) }))
}

func (s *Session) finish(f Finish) {
	result := Result{State: s.machine.State(), ExitCode: f.ExitCode, Err: f.Err}
	s.result = &result
	observeOutcome(result)
	s.logger.Info("session: finished",
		slog.String("state", result.State.String()),
		slog.Int("exitCode", result.ExitCode))
}

func (s *Session) cleanup() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.deps.Media.Stop()
	if s.control != nil {
		if err := s.control.Close(); err != nil {
			s.logger.Debug("session: MRCP close", slog.Any("error", err))
		}
	}
}
