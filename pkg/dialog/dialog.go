package dialog

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

// State состояние диалога
type State int

const (
	StateIdle State = iota
	StateInviting
	StateEstablished
	StateTerminated
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateInviting:    "inviting",
	StateEstablished: "established",
	StateTerminated:  "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Response ответ на запрос внутри диалога
type Response struct {
	Method  sip.RequestMethod
	Status  int
	Reason  string
	CallID  string
	ToTag   string
	Contact string
	Body    []byte

	raw *sip.Response
}

// IsProvisional 1xx
func (r *Response) IsProvisional() bool { return r.Status < 200 }

// IsSuccess 2xx
func (r *Response) IsSuccess() bool { return r.Status >= 200 && r.Status < 300 }

func newResponse(method sip.RequestMethod, res *sip.Response) *Response {
	r := &Response{
		Method: method,
		Status: res.StatusCode,
		Reason: res.Reason,
		Body:   res.Body(),
		raw:    res,
	}
	if callID := res.CallID(); callID != nil {
		r.CallID = callID.Value()
	}
	if to := res.To(); to != nil {
		r.ToTag, _ = to.Params.Get("tag")
	}
	if contact := res.Contact(); contact != nil {
		r.Contact = contact.Address.String()
	}
	return r
}

// ResponseFunc получает каждый ответ транзакции, включая предварительные
type ResponseFunc func(resp *Response)

// ErrorFunc получает отказ транзакции без финального ответа
type ErrorFunc func(err error)

// Dialog исходящий SIP диалог UAC.
// Call-ID и From tag генерируются один раз, CSeq INVITE случаен,
// CSeq каждого следующего запроса увеличивается на 1.
type Dialog struct {
	stack  *Stack
	target sip.Uri

	mu            sync.Mutex
	state         State
	callID        string
	localTag      string
	remoteTag     string
	remoteContact sip.Uri
	inviteReq     *sip.Request
	cseq          uint32
}

func newDialog(s *Stack, target sip.Uri) *Dialog {
	return &Dialog{
		stack:    s,
		target:   target,
		callID:   uuid.NewString(),
		localTag: sip.RandString(10),
		cseq:     uint32(rand.IntN(100000)),
	}
}

// CallID идентификатор вызова
func (d *Dialog) CallID() string { return d.callID }

// LocalTag tag в заголовке From
func (d *Dialog) LocalTag() string { return d.localTag }

// RemoteTag tag удаленной стороны из первого 2xx
func (d *Dialog) RemoteTag() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteTag
}

// State текущее состояние
func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Invite отправляет INVITE с SDP offer. Ответы доставляются асинхронно в onResponse
// до первого финального включительно, отказ транзакции - в onError.
func (d *Dialog) Invite(ctx context.Context, offer []byte, onResponse ResponseFunc, onError ErrorFunc) error {
	d.mu.Lock()
	if d.state != StateIdle {
		state := d.state
		d.mu.Unlock()
		return newStateError(sip.INVITE, d.callID, "dialog is "+state.String())
	}
	req := d.buildInvite(offer)
	d.inviteReq = req
	d.state = StateInviting
	d.mu.Unlock()

	d.stack.logger.Debug("dialog.Invite",
		slog.String("callID", d.callID),
		slog.String("target", d.target.String()),
		slog.Uint64("cseq", uint64(req.CSeq().SeqNo)))

	tx, err := d.stack.client.TransactionRequest(ctx, req, sipgo.ClientRequestAddVia)
	if err != nil {
		d.setState(StateTerminated)
		return newTransportError(sip.INVITE, d.callID, err)
	}
	go d.watch(ctx, sip.INVITE, tx, onResponse, onError)
	return nil
}

// Ack подтверждает 2xx на INVITE. ACK отправляется на Contact из ответа
// с номером CSeq исходного INVITE.
func (d *Dialog) Ack(resp *Response) error {
	d.mu.Lock()
	if d.inviteReq == nil || resp == nil || resp.raw == nil || !resp.IsSuccess() {
		d.mu.Unlock()
		return newStateError(sip.ACK, d.callID, "no 2xx response to acknowledge")
	}
	ack := d.buildAck(resp.raw)
	d.mu.Unlock()

	d.stack.logger.Debug("dialog.Ack",
		slog.String("callID", d.callID),
		slog.String("uri", ack.Recipient.String()))

	if err := d.stack.client.WriteRequest(ack, sipgo.ClientRequestAddVia); err != nil {
		return newTransportError(sip.ACK, d.callID, err)
	}
	return nil
}

// Bye завершает установленный диалог. Финальный ответ доставляется в onResponse.
func (d *Dialog) Bye(ctx context.Context, onResponse ResponseFunc, onError ErrorFunc) error {
	d.mu.Lock()
	if d.state != StateEstablished {
		state := d.state
		d.mu.Unlock()
		return newStateError(sip.BYE, d.callID, "dialog is "+state.String())
	}
	req := d.buildInDialog(sip.BYE)
	d.state = StateTerminated
	d.mu.Unlock()

	d.stack.logger.Debug("dialog.Bye",
		slog.String("callID", d.callID),
		slog.Uint64("cseq", uint64(req.CSeq().SeqNo)))

	tx, err := d.stack.client.TransactionRequest(ctx, req, sipgo.ClientRequestAddVia)
	if err != nil {
		return newTransportError(sip.BYE, d.callID, err)
	}
	go d.watch(ctx, sip.BYE, tx, onResponse, onError)
	return nil
}

func (d *Dialog) watch(ctx context.Context, method sip.RequestMethod, tx sip.ClientTransaction, onResponse ResponseFunc, onError ErrorFunc) {
	defer tx.Terminate()

	for {
		select {
		case res, ok := <-tx.Responses():
			if !ok {
				return
			}
			r := newResponse(method, res)
			d.stack.logger.Debug("dialog.watch: response",
				slog.String("method", method.String()),
				slog.Int("status", r.Status),
				slog.String("toTag", r.ToTag))

			if method == sip.INVITE {
				d.onInviteResponse(r)
			}
			if onResponse != nil {
				onResponse(r)
			}
			if !r.IsProvisional() {
				return
			}
		case <-tx.Done():
			err := tx.Err()
			if err == nil {
				err = ErrNoFinalResponse
			}
			if method == sip.INVITE {
				d.setState(StateTerminated)
			}
			if onError != nil {
				onError(newTransportError(method, d.callID, err))
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// onInviteResponse первый 2xx фиксирует remote tag и Contact
func (d *Dialog) onInviteResponse(r *Response) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case r.IsProvisional():
	case r.IsSuccess():
		if d.state != StateInviting {
			d.stack.logger.Warn("dialog: extra 2xx ignored",
				slog.String("callID", d.callID),
				slog.String("toTag", r.ToTag))
			return
		}
		d.remoteTag = r.ToTag
		d.remoteContact = d.target
		if contact := r.raw.Contact(); contact != nil {
			d.remoteContact = contact.Address
		}
		d.state = StateEstablished
	default:
		d.state = StateTerminated
	}
}

// acceptRemoteBye проверяет принадлежность BYE диалогу и завершает его
func (d *Dialog) acceptRemoteBye(req *sip.Request) bool {
	callID := req.CallID()
	if callID == nil || callID.Value() != d.callID {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateEstablished {
		return false
	}
	if from := req.From(); from != nil && d.remoteTag != "" {
		if tag, ok := from.Params.Get("tag"); ok && tag != d.remoteTag {
			return false
		}
	}
	d.state = StateTerminated
	return true
}

func (d *Dialog) setState(state State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}
