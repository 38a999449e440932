package session

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// State состояние сессии
type State string

const (
	StateInit           State = "INIT"
	StateInviting       State = "INVITING"
	StateEstablished    State = "ESTABLISHED"
	StateNegotiatingSDP State = "NEGOTIATING_SDP"
	StateChannelReady   State = "CHANNEL_READY"
	StateGrammarPending State = "GRAMMAR_PENDING"
	StateCommandPending State = "COMMAND_PENDING"
	StateStreaming      State = "STREAMING"
	StateCompleting     State = "COMPLETING"
	StateTerminated     State = "TERMINATED"
	StateFailed         State = "FAILED"
)

func (s State) String() string { return string(s) }

// IsTerminal TERMINATED и FAILED поглощающие
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateFailed
}

// IsEstablished диалог установлен и BYE сервера допустим
func (s State) IsEstablished() bool {
	switch s {
	case StateInit, StateInviting, StateTerminated, StateFailed:
		return false
	}
	return true
}

func transitionEvent(to State) string {
	return "to_" + string(to)
}

func states(list ...State) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

// newStateMachine матрица допустимых переходов
func newStateMachine(logger *slog.Logger) *fsm.FSM {
	live := []State{
		StateInit, StateInviting, StateEstablished, StateNegotiatingSDP, StateChannelReady,
		StateGrammarPending, StateCommandPending, StateStreaming, StateCompleting,
	}
	established := []State{
		StateEstablished, StateNegotiatingSDP, StateChannelReady,
		StateGrammarPending, StateCommandPending, StateStreaming, StateCompleting,
	}

	return fsm.NewFSM(
		string(StateInit),
		fsm.Events{
			{Name: transitionEvent(StateInviting), Src: states(StateInit), Dst: string(StateInviting)},
			{Name: transitionEvent(StateEstablished), Src: states(StateInviting), Dst: string(StateEstablished)},
			{Name: transitionEvent(StateNegotiatingSDP), Src: states(StateEstablished), Dst: string(StateNegotiatingSDP)},
			{Name: transitionEvent(StateChannelReady), Src: states(StateNegotiatingSDP), Dst: string(StateChannelReady)},
			{Name: transitionEvent(StateGrammarPending), Src: states(StateChannelReady), Dst: string(StateGrammarPending)},
			{Name: transitionEvent(StateCommandPending), Src: states(StateChannelReady, StateGrammarPending), Dst: string(StateCommandPending)},
			{Name: transitionEvent(StateStreaming), Src: states(StateCommandPending), Dst: string(StateStreaming)},
			{Name: transitionEvent(StateCompleting), Src: states(StateStreaming), Dst: string(StateCompleting)},
			{Name: transitionEvent(StateTerminated), Src: states(established...), Dst: string(StateTerminated)},
			{Name: transitionEvent(StateFailed), Src: states(live...), Dst: string(StateFailed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				transitionsTotal.WithLabelValues(e.Src, e.Dst).Inc()
				logger.Info("session: transition",
					slog.String("from", e.Src),
					slog.String("to", e.Dst))
			},
		},
	)
}
