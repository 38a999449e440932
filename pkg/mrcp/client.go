package mrcp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler получает события управляющего соединения.
// Все методы вызываются из одной горутины чтения.
type Handler interface {
	OnMessage(msg *Message)
	OnError(err error)
	OnClose()
}

// HandlerFuncs адаптер Handler из функций. Нулевые поля игнорируются.
type HandlerFuncs struct {
	Message func(msg *Message)
	Error   func(err error)
	Close   func()
}

func (h HandlerFuncs) OnMessage(msg *Message) {
	if h.Message != nil {
		h.Message(msg)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnClose() {
	if h.Close != nil {
		h.Close()
	}
}

// Client TCP соединение с сервером MRCPv2
type Client struct {
	conn    net.Conn
	handler Handler
	logger  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}

	writeTimeout time.Duration
}

// Dial устанавливает соединение и запускает чтение сообщений.
func Dial(ctx context.Context, addr string, handler Handler, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect MRCP server %s", addr)
	}
	logger.Debug("mrcp.Dial",
		slog.String("local", conn.LocalAddr().String()),
		slog.String("remote", conn.RemoteAddr().String()))

	c := &Client{
		conn:         conn,
		handler:      handler,
		logger:       logger,
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	go c.readLoop()
	return c, nil
}

// Write отправляет сообщение целиком
func (c *Client) Write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return errors.New("MRCP connection closed")
	default:
	}
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write(msg); err != nil {
		return errors.Wrap(err, "MRCP write failed")
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	r := bufio.NewReader(c.conn)
	for {
		msg, err := ReadMessage(r)
		if err != nil {
			select {
			case <-c.closed:
				// закрыто локально
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				c.logger.Debug("mrcp.readLoop: connection closed by server")
				c.handler.OnClose()
			} else {
				c.handler.OnError(err)
			}
			return
		}
		c.logger.Debug("mrcp.readLoop: message",
			slog.String("kind", msg.Kind.String()),
			slog.String("name", msg.Name()),
			slog.Uint64("requestID", uint64(msg.RequestID)),
			slog.Int("status", msg.StatusCode),
			slog.String("state", msg.RequestState))
		c.handler.OnMessage(msg)
	}
}

// Close закрывает соединение и ждет завершения чтения. Повторный вызов безопасен.
// Нельзя вызывать из методов Handler.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	<-c.done
	return err
}

// LocalAddr локальный адрес соединения
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}
