package mrcp

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Writer отправляет сериализованное сообщение в управляющее соединение.
type Writer interface {
	Write(msg []byte) error
}

// Pending ожидающий ответа запрос
type Pending struct {
	ID       uint32
	Method   string
	IssuedAt time.Time
}

// OutcomeKind результат обработки входящего сообщения
type OutcomeKind int

const (
	// OutcomeResolved ответ на ожидающий запрос
	OutcomeResolved OutcomeKind = iota
	// OutcomeUnexpected ответ с неизвестным request-id
	OutcomeUnexpected
	// OutcomeEvent событие, передается без сопоставления
	OutcomeEvent
	// OutcomeIgnored запросы от сервера и прочее
	OutcomeIgnored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnexpected:
		return "unexpected"
	case OutcomeEvent:
		return "event"
	default:
		return "ignored"
	}
}

// Outcome описывает, что означает входящее сообщение для сессии.
type Outcome struct {
	Kind      OutcomeKind
	RequestID uint32
	Method    string // метод запроса для OutcomeResolved
	Status    int
	Latency   time.Duration
	EventName string
	Message   *Message
}

// Correlator выдает идентификаторы запросов и сопоставляет с ними ответы.
// Идентификаторы начинаются с 1 и строго возрастают в пределах сессии.
type Correlator struct {
	mu      sync.Mutex
	writer  Writer
	channel string
	nextID  uint32
	pending map[uint32]Pending
	logger  *slog.Logger

	now func() time.Time
}

// NewCorrelator создает коррелятор для канала channel
func NewCorrelator(writer Writer, channel string, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		writer:  writer,
		channel: channel,
		nextID:  1,
		pending: make(map[uint32]Pending),
		logger:  logger,
		now:     time.Now,
	}
}

// Channel идентификатор канала MRCP
func (c *Correlator) Channel() string {
	return c.channel
}

// Send выделяет идентификатор, запоминает запрос и отправляет его. Ответа не ждет.
func (c *Correlator) Send(cmd Command) (uint32, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	headers, body := cmd.Render(c.channel)
	c.pending[id] = Pending{ID: id, Method: cmd.Method(), IssuedAt: c.now()}
	c.mu.Unlock()

	raw := BuildRequest(cmd.Method(), id, headers, body)
	c.logger.Debug("Correlator.Send",
		slog.String("method", cmd.Method()),
		slog.Uint64("requestID", uint64(id)),
		slog.Int("length", len(raw)))

	if err := c.writer.Write(raw); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return 0, errors.Wrapf(err, "failed to send %s", cmd.Method())
	}
	return id, nil
}

// OnMessage сопоставляет входящее сообщение.
// Ответ с неизвестным request-id не меняет состояние и возвращает OutcomeUnexpected.
func (c *Correlator) OnMessage(msg *Message) Outcome {
	switch msg.Kind {
	case KindResponse:
		c.mu.Lock()
		p, ok := c.pending[msg.RequestID]
		if ok {
			delete(c.pending, msg.RequestID)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.Info("Correlator.OnMessage: unexpected response",
				slog.Uint64("requestID", uint64(msg.RequestID)),
				slog.Int("status", msg.StatusCode))
			return Outcome{Kind: OutcomeUnexpected, RequestID: msg.RequestID, Status: msg.StatusCode, Message: msg}
		}
		return Outcome{
			Kind:      OutcomeResolved,
			RequestID: msg.RequestID,
			Method:    p.Method,
			Status:    msg.StatusCode,
			Latency:   c.now().Sub(p.IssuedAt),
			Message:   msg,
		}
	case KindEvent:
		return Outcome{Kind: OutcomeEvent, RequestID: msg.RequestID, EventName: msg.EventName, Message: msg}
	default:
		return Outcome{Kind: OutcomeIgnored, RequestID: msg.RequestID, Message: msg}
	}
}

// Pending возвращает ожидающие запросы по возрастанию идентификатора
func (c *Correlator) Pending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
