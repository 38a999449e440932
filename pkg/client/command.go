package client

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/arzzra/mrcp_client/pkg/media_sdp"
)

// CommandSpec описание утилиты командной строки
type CommandSpec struct {
	Use   string
	Short string
	Long  string
	// MaxArgs число позиционных аргументов после server_host и server_port
	MaxArgs int
	// Args раскладывает дополнительные аргументы по полям Options
	Args func(opts *Options, args []string)
}

// NewCommand создает команду для ресурса. Код завершения записывается в exitCode.
func NewCommand(resource media_sdp.Resource, spec CommandSpec, exitCode *int) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:           spec.Use,
		Short:         spec.Short,
		Long:          spec.Long,
		Args:          cobra.RangeArgs(2, 2+spec.MaxArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Errorf("invalid server port %q", args[1])
			}
			opts.ServerHost = args[0]
			opts.ServerPort = port
			if spec.Args != nil {
				spec.Args(&opts, args[2:])
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := Run(ctx, resource, opts)
			*exitCode = code
			return err
		},
	}

	flags := cmd.Flags()
	flags.VarP(&timeoutFlag{target: &opts.Timeout}, "timeout", "t", "session timeout: milliseconds or a duration like 30s, 0 disables it")
	flags.StringVarP(&opts.Headers, "headers", "r", "", `extra MRCP headers, "Name: value" separated by \n`)
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	if resource == media_sdp.ResourceSpeechSynth {
		flags.StringVarP(&opts.OutputFile, "write", "w", "", "save synthesized audio to a WAV file")
		flags.BoolVarP(&opts.NoSpeaker, "no-speaker", "S", false, "do not play audio to stdout")
	}
	return cmd
}

// timeoutFlag значение -t: целое число миллисекунд или длительность Go
type timeoutFlag struct {
	target **time.Duration
}

func (f *timeoutFlag) String() string {
	if f.target == nil || *f.target == nil {
		return ""
	}
	return (**f.target).String()
}

func (f *timeoutFlag) Set(value string) error {
	d, err := parseTimeout(value)
	if err != nil {
		return err
	}
	*f.target = &d
	return nil
}

func (f *timeoutFlag) Type() string {
	return "duration"
}

func parseTimeout(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms < 0 {
			return 0, errors.Errorf("negative timeout %q", value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Errorf("invalid timeout %q: want milliseconds or a duration", value)
	}
	if d < 0 {
		return 0, errors.Errorf("negative timeout %q", value)
	}
	return d, nil
}

// Execute выполняет команду и возвращает код завершения процесса
func Execute(resource media_sdp.Resource, spec CommandSpec) int {
	code := 1
	cmd := NewCommand(resource, spec, &code)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return code
}
