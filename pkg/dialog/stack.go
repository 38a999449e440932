package dialog

import (
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/pkg/errors"
)

// DefaultUser пользовательская часть From и Contact
const DefaultUser = "mrcp_client"

// Config конфигурация SIP стека
type Config struct {
	// AdvertiseIP адрес в From, Contact и Via. Пустой - адрес сокета.
	AdvertiseIP string
	// User пользовательская часть URI, по умолчанию DefaultUser
	User      string
	UserAgent string
	Logger    *slog.Logger
}

// Stack SIP агент одного исходящего вызова поверх привязанного UDP сокета.
// Входящие вызовы не принимаются.
type Stack struct {
	ua     *sipgo.UserAgent
	server *sipgo.Server
	client *sipgo.Client
	conn   net.PacketConn

	contact   sip.Uri
	userAgent string
	logger    *slog.Logger

	mu          sync.Mutex
	dialog      *Dialog
	onRemoteBye func(callID string)
	closed      bool
}

// NewStack создает стек на сокете conn. Сокет закрывается в Close.
func NewStack(conn *net.UDPConn, cfg Config) (*Stack, error) {
	if conn == nil {
		return nil, errors.New("SIP socket is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	host := cfg.AdvertiseIP
	if host == "" {
		host = local.IP.String()
	}
	user := cfg.User
	if user == "" {
		user = DefaultUser
	}

	var contact sip.Uri
	contactStr := "sip:" + user + "@" + net.JoinHostPort(host, strconv.Itoa(local.Port))
	if err := sip.ParseUri(contactStr, &contact); err != nil {
		return nil, errors.Wrapf(err, "invalid contact %s", contactStr)
	}

	uaOpts := []sipgo.UserAgentOption{sipgo.WithUserAgentHostname(host)}
	if cfg.UserAgent != "" {
		uaOpts = append(uaOpts, sipgo.WithUserAgent(cfg.UserAgent))
	}
	ua, err := sipgo.NewUA(uaOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user agent")
	}
	srv, err := sipgo.NewServer(ua)
	if err != nil {
		ua.Close()
		return nil, errors.Wrap(err, "failed to create SIP server")
	}
	client, err := sipgo.NewClient(ua,
		sipgo.WithClientHostname(host),
		sipgo.WithClientPort(local.Port))
	if err != nil {
		ua.Close()
		return nil, errors.Wrap(err, "failed to create SIP client")
	}

	s := &Stack{
		ua:        ua,
		server:    srv,
		client:    client,
		conn:      conn,
		contact:   contact,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
	s.onRequests()
	return s, nil
}

func (s *Stack) onRequests() {
	s.server.OnBye(s.handleBye)
	s.server.OnAck(s.handleAck)
	s.server.OnInvite(s.rejectMethod)
	s.server.OnNoRoute(s.rejectMethod)
}

// Serve обрабатывает входящие SIP сообщения до закрытия сокета
func (s *Stack) Serve() error {
	return s.server.ServeUDP(s.conn)
}

// OnRemoteBye устанавливает обработчик BYE от удаленной стороны.
// Вызывается после отправки 200 OK.
func (s *Stack) OnRemoteBye(fn func(callID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoteBye = fn
}

// Contact URI локального агента
func (s *Stack) Contact() sip.Uri {
	return s.contact
}

// NewDialog создает исходящий диалог к серверу host:port.
// Стек обслуживает не более одного диалога.
func (s *Stack) NewDialog(host string, port int) (*Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("SIP stack closed")
	}
	if s.dialog != nil {
		return nil, errors.New("dialog already exists")
	}

	var target sip.Uri
	targetStr := "sip:" + net.JoinHostPort(host, strconv.Itoa(port))
	if err := sip.ParseUri(targetStr, &target); err != nil {
		return nil, errors.Wrapf(err, "invalid server address %s", targetStr)
	}

	d := newDialog(s, target)
	s.dialog = d
	return d, nil
}

// Close закрывает агент и сокет. Повторный вызов безопасен.
func (s *Stack) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.ua.Close()
	if cerr := s.conn.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

func (s *Stack) handleBye(req *sip.Request, tx sip.ServerTransaction) {
	s.logger.Debug("dialog.handleBye", slog.String("req", req.StartLine()))

	s.mu.Lock()
	d := s.dialog
	cb := s.onRemoteBye
	s.mu.Unlock()

	status, reason := sip.StatusCallTransactionDoesNotExists, "Call/Transaction Does Not Exist"
	if d != nil && d.acceptRemoteBye(req) {
		status, reason = sip.StatusOK, "OK"
	}

	if err := tx.Respond(sip.NewResponseFromRequest(req, status, reason, nil)); err != nil {
		s.logger.Error("dialog.handleBye: respond failed",
			slog.Int("status", status),
			slog.Any("error", err))
	}
	if status == sip.StatusOK && cb != nil {
		cb(d.CallID())
	}
}

// ACK на наш 200 OK не ожидается, входящие вызовы не принимаются
func (s *Stack) handleAck(req *sip.Request, _ sip.ServerTransaction) {
	s.logger.Debug("dialog.handleAck: ignored", slog.String("req", req.StartLine()))
}

func (s *Stack) rejectMethod(req *sip.Request, tx sip.ServerTransaction) {
	s.logger.Debug("dialog.rejectMethod", slog.String("method", req.Method.String()))
	if err := tx.Respond(sip.NewResponseFromRequest(req, sip.StatusMethodNotAllowed, "Method Not Allowed", nil)); err != nil {
		s.logger.Error("dialog.rejectMethod: respond failed", slog.Any("error", err))
	}
}
