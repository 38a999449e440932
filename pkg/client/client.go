package client

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/arzzra/mrcp_client/pkg/config"
	"github.com/arzzra/mrcp_client/pkg/dialog"
	"github.com/arzzra/mrcp_client/pkg/media_sdp"
	"github.com/arzzra/mrcp_client/pkg/mrcp"
	"github.com/arzzra/mrcp_client/pkg/rtp"
	"github.com/arzzra/mrcp_client/pkg/session"
)

// Run выполняет один вызов к MRCP серверу и возвращает код завершения процесса:
// 0 после штатного BYE, 1 при любой ошибке или истечении срока.
func Run(ctx context.Context, resource media_sdp.Resource, opts Options) (int, error) {
	opts = opts.withDefaults(resource)
	if err := opts.Validate(resource); err != nil {
		return 1, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return 1, err
	}
	if err := opts.apply(cfg); err != nil {
		return 1, err
	}

	logger, err := NewLogger(cfg.Log, opts.Stderr)
	if err != nil {
		return 1, err
	}
	// журнал sipgo следует общему
	slog.SetDefault(logger)

	c, err := newCall(resource, cfg, opts, logger)
	if err != nil {
		logger.Error("client: setup failed", slog.Any("error", err))
		return 1, err
	}
	defer c.close()

	result, err := c.run(ctx)
	if err != nil {
		logger.Error("client: run failed", slog.Any("error", err))
		if result.Err == nil {
			result.Err = err
		}
		result.ExitCode = 1
	}
	return result.ExitCode, result.Err
}

// call участники одного вызова
type call struct {
	stack   *dialog.Stack
	audio   *audioPath
	session *session.Session
	metrics *metricsServer
	cfg     *config.Config
	logger  *slog.Logger
}

func newCall(resource media_sdp.Resource, cfg *config.Config, opts Options, logger *slog.Logger) (*call, error) {
	extra, err := mrcp.ParseHeaderLines(opts.Headers)
	if err != nil {
		return nil, errors.Wrap(err, "invalid extra headers")
	}
	grammar, command, err := buildCommands(resource, opts, cfg.Recognizer, extra)
	if err != nil {
		return nil, err
	}

	advertise := cfg.AdvertiseIP
	if advertise == "" {
		advertise = detectAdvertiseIP(cfg.LocalIP, opts.ServerHost, opts.ServerPort)
	}

	sipConn, sipPort, err := rtp.AllocateUDP(cfg.LocalIP, cfg.SIP.Ports.Candidates())
	if err != nil {
		return nil, portError("SIP", err)
	}
	rtpConn, rtpPort, err := rtp.AllocateUDP(cfg.LocalIP, cfg.RTP.Ports.Candidates())
	if err != nil {
		sipConn.Close()
		return nil, portError("RTP", err)
	}
	logger.Info("client: ports allocated",
		slog.String("advertiseIP", advertise),
		slog.Int("sipPort", sipPort),
		slog.Int("rtpPort", rtpPort))

	c := &call{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			c.close()
		}
	}()

	c.audio, err = newAudioPath(rtpConn, resource, cfg, opts, logger)
	if err != nil {
		rtpConn.Close()
		sipConn.Close()
		return nil, err
	}

	c.stack, err = dialog.NewStack(sipConn, dialog.Config{
		AdvertiseIP: advertise,
		UserAgent:   cfg.UserAgent,
		Logger:      logger,
	})
	if err != nil {
		sipConn.Close()
		return nil, err
	}
	dlg, err := c.stack.NewDialog(opts.ServerHost, opts.ServerPort)
	if err != nil {
		return nil, err
	}

	offer, err := media_sdp.BuildOffer(resource, advertise, rtpPort)
	if err != nil {
		return nil, err
	}

	c.session, err = session.New(session.Config{
		Resource:   resource,
		Offer:      offer,
		Grammar:    grammar,
		Command:    command,
		DrainDelay: cfg.DrainDelay,
		GraceDelay: cfg.GraceDelay,
	}, session.Deps{
		Signaling: dlg,
		Dial:      dialControl(logger),
		Media:     c.audio,
		Report:    reporter{w: reportWriter(resource, opts), logger: logger}.report,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	c.stack.OnRemoteBye(func(string) { c.session.Post(session.RemoteBye{}) })
	if err := c.audio.Start(func(err error) {
		c.session.Post(session.TransportFailure{Err: session.TransportError(session.CodeRTPTransport, "RTP receive failed", err)})
	}); err != nil {
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		c.metrics = newMetricsServer(cfg.MetricsAddr, logger)
	}
	ready = true
	return c, nil
}

// run обслуживает SIP, метрики и сессию до завершения сессии
func (c *call) run(ctx context.Context) (session.Result, error) {
	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(runCtx)
	var finished atomic.Bool

	g.Go(func() error {
		if err := c.stack.Serve(); err != nil && !finished.Load() {
			return session.TransportError(session.CodeSIPTransport, "SIP listener failed", err)
		}
		return nil
	})
	if c.metrics != nil {
		g.Go(func() error {
			// недоступность метрик не прерывает вызов
			if err := c.metrics.Serve(); err != nil {
				c.logger.Warn("client: metrics unavailable", slog.Any("error", err))
			}
			return nil
		})
	}

	var result session.Result
	g.Go(func() error {
		result = c.session.Run(gctx)
		finished.Store(true)
		if err := c.stack.Close(); err != nil {
			c.logger.Debug("client: SIP close", slog.Any("error", err))
		}
		if c.metrics != nil {
			c.metrics.Shutdown()
		}
		return nil
	})

	err := g.Wait()
	return result, err
}

func (c *call) close() {
	if c.audio != nil {
		if err := c.audio.Close(); err != nil {
			c.logger.Warn("client: audio close", slog.Any("error", err))
		}
	}
	if c.stack != nil {
		if err := c.stack.Close(); err != nil {
			c.logger.Debug("client: SIP close", slog.Any("error", err))
		}
	}
}

func dialControl(logger *slog.Logger) session.ControlDialer {
	return func(ctx context.Context, addr string, handler mrcp.Handler) (session.ControlConn, error) {
		conn, err := mrcp.Dial(ctx, addr, handler, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func portError(transport string, err error) error {
	var exhausted *rtp.PortExhaustedError
	if errors.As(err, &exhausted) {
		return session.NewError(session.CategoryResource, session.CodePortExhausted,
			"no free "+transport+" port", err)
	}
	return errors.Wrapf(err, "%s port", transport)
}

// reportWriter при воспроизведении в stdout итог уходит в stderr
func reportWriter(resource media_sdp.Resource, opts Options) io.Writer {
	if resource == media_sdp.ResourceSpeechSynth && playbackEnabled(opts) {
		return opts.Stderr
	}
	return opts.Stdout
}

// detectAdvertiseIP адрес для SDP и Contact. Для неуказанного локального адреса
// берется адрес интерфейса, через который виден сервер.
func detectAdvertiseIP(localIP, serverHost string, serverPort int) string {
	if ip := net.ParseIP(localIP); ip != nil && !ip.IsUnspecified() {
		return localIP
	}
	conn, err := net.Dial("udp", net.JoinHostPort(serverHost, strconv.Itoa(serverPort)))
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
