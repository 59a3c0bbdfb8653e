package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/ipkchat/internal/client"
	"github.com/danmuck/ipkchat/internal/console"
	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/observability"
	"github.com/danmuck/ipkchat/internal/transport"
)

type flagValues struct {
	transport  string
	server     string
	port       uint16
	udpTimeout uint16
	udpRetries uint8
	configPath string
	metrics    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	code := 0
	cmd := newRootCmd(stdin, stdout, &code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	return code
}

func newRootCmd(stdin io.Reader, stdout io.Writer, code *int) *cobra.Command {
	var flags flagValues
	cmd := &cobra.Command{
		Use:   "ipkchat -t tcp -s <server> [-p port]",
		Short: "IPK-25-CHAT terminal client",
		Long: `Chat client for the IPK-25-CHAT protocol.

Commands typed at the prompt:
  /auth <id> <secret> <displayName>
  /join <channelId>
  /rename <displayName>
  /help
Any other line is sent as a chat message.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			*code, err = runClient(cmd.Context(), cfg, stdin, stdout)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.transport, "transport", "t", "", "transport protocol: tcp or udp")
	f.StringVarP(&flags.server, "server", "s", "", "server IP address or hostname")
	f.Uint16VarP(&flags.port, "port", "p", defaultPort, "server port")
	f.Uint16VarP(&flags.udpTimeout, "udp-timeout", "d", uint16(defaultUDPTimeout.Milliseconds()), "UDP confirmation timeout in milliseconds")
	f.Uint8VarP(&flags.udpRetries, "udp-retries", "r", defaultUDPRetries, "maximum number of UDP retransmissions")
	f.StringVar(&flags.configPath, "config", "", "optional TOML config file")
	f.StringVar(&flags.metrics, "metrics-listen", "", "serve Prometheus metrics on this address (disabled when empty)")

	cmd.AddCommand(newConfigCmd(stdout))
	return cmd
}

// resolveConfig layers defaults, the config file, then explicitly set flags.
func resolveConfig(cmd *cobra.Command, flags flagValues) (appConfig, error) {
	cfg := defaultAppConfig()
	if flags.configPath != "" {
		var err error
		if cfg, err = loadAppConfig(flags.configPath, cfg); err != nil {
			return appConfig{}, err
		}
	}
	f := cmd.Flags()
	if f.Changed("transport") {
		cfg.Transport = flags.transport
	}
	if f.Changed("server") {
		cfg.Server = flags.server
	}
	if f.Changed("port") {
		cfg.Port = flags.port
	}
	if f.Changed("udp-timeout") {
		cfg.UDPTimeout = msDuration(flags.udpTimeout)
	}
	if f.Changed("udp-retries") {
		cfg.UDPRetries = int(flags.udpRetries)
	}
	if f.Changed("metrics-listen") {
		cfg.MetricsListen = flags.metrics
	}
	return cfg, nil
}

// runClient connects and drives one session. Setup failures come back as
// errors; session outcomes come back as an exit status.
func runClient(ctx context.Context, cfg appConfig, stdin io.Reader, stdout io.Writer) (int, error) {
	kind, err := cfg.validate()
	if err != nil {
		return 1, err
	}
	logs.ConfigureWith(cfg.Log)
	logs.Infof("ipkchat.start transport=%s server=%q port=%d", kind, cfg.Server, cfg.Port)

	if cfg.MetricsListen != "" {
		metrics, err := observability.Start(cfg.MetricsListen)
		if err != nil {
			return 1, err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := metrics.Close(ctx); err != nil {
				logs.Debugf("ipkchat.metrics close err=%v", err)
			}
		}()
	}

	conn, err := transport.Dial(ctx, cfg.Session, kind, cfg.Server, cfg.Port)
	if err != nil {
		return 1, err
	}

	input := console.NewLines(stdin)
	defer input.Close()
	sess := client.New(client.ConfigFrom(cfg.Session), conn, console.NewDisplay(stdout))
	err = sess.Run(ctx, input)
	if err != nil {
		logs.Warnf("ipkchat.session ended err=%v", err)
	}
	return client.ExitCode(err), nil
}
