package client

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/arzzra/mrcp_client/pkg/mrcp"
)

// reporter выводит итог команды: Completion-Cause и тело события
type reporter struct {
	w      io.Writer
	logger *slog.Logger
}

func (r reporter) report(msg *mrcp.Message) {
	cause := msg.Headers.Get(mrcp.HeaderCompletionCause)
	r.logger.Info("client: command complete",
		slog.String("event", msg.EventName),
		slog.String("completionCause", cause),
		slog.Int("bodyBytes", len(msg.Body)))

	if cause != "" {
		fmt.Fprintf(r.w, "%s: %s\n", mrcp.HeaderCompletionCause, cause)
	}
	if len(msg.Body) > 0 {
		fmt.Fprintf(r.w, "%s\n", msg.Body)
	}
}
