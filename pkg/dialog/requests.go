package dialog

import (
	"github.com/emiago/sipgo/sip"
)

const contentTypeSDP = "application/sdp"

// buildInvite INVITE на sip:host:port, To без tag, Contact совпадает с From
func (d *Dialog) buildInvite(offer []byte) *sip.Request {
	req := sip.NewRequest(sip.INVITE, d.target)
	d.appendCommon(req, sip.INVITE, d.cseq)

	req.AppendHeader(&sip.ContactHeader{Address: d.stack.contact, Params: sip.NewParams()})
	if len(offer) > 0 {
		ct := sip.ContentTypeHeader(contentTypeSDP)
		req.AppendHeader(&ct)
	}
	req.SetBody(offer)
	return req
}

// buildAck ACK на 2xx: Request-URI из Contact ответа, From из INVITE, To из ответа
func (d *Dialog) buildAck(resp *sip.Response) *sip.Request {
	recipient := d.target
	if contact := resp.Contact(); contact != nil {
		recipient = contact.Address
	}

	ack := sip.NewRequest(sip.ACK, recipient)
	ack.AppendHeader(d.inviteReq.From())
	ack.AppendHeader(resp.To())
	callID := sip.CallIDHeader(d.callID)
	ack.AppendHeader(&callID)
	ack.AppendHeader(&sip.CSeqHeader{
		SeqNo:      d.inviteReq.CSeq().SeqNo,
		MethodName: sip.ACK,
	})
	maxFwd := sip.MaxForwardsHeader(70)
	ack.AppendHeader(&maxFwd)
	ack.SetBody(nil)
	return ack
}

// buildInDialog запрос внутри установленного диалога со следующим CSeq
func (d *Dialog) buildInDialog(method sip.RequestMethod) *sip.Request {
	d.cseq++
	req := sip.NewRequest(method, d.remoteContact)
	d.appendCommon(req, method, d.cseq)
	req.SetBody(nil)
	return req
}

func (d *Dialog) appendCommon(req *sip.Request, method sip.RequestMethod, cseq uint32) {
	req.AppendHeader(&sip.FromHeader{
		Address: d.stack.contact,
		Params:  sip.NewParams().Add("tag", d.localTag),
	})

	to := &sip.ToHeader{Address: d.target, Params: sip.NewParams()}
	if d.remoteTag != "" {
		to.Params = to.Params.Add("tag", d.remoteTag)
	}
	req.AppendHeader(to)

	callID := sip.CallIDHeader(d.callID)
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: cseq, MethodName: method})
	maxFwd := sip.MaxForwardsHeader(70)
	req.AppendHeader(&maxFwd)
	if d.stack.userAgent != "" {
		req.AppendHeader(sip.NewHeader("User-Agent", d.stack.userAgent))
	}
}
