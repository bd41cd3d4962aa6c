package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/orb/wire"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	nameServer  string
	host        string
	callTimeout time.Duration
	verbose     bool

	cfg config.ClientConfig
}

// session is one connected discovery client.
type session struct {
	*rtm.Client
	transport *wire.Client
	host      string
}

func (s *session) Close() error {
	return s.transport.Close()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "rtmctl",
		Short: "Inspect and drive RT components through a naming service",
		Long: `rtmctl finds managers and components registered with a naming
service and drives them: module loading, component creation, port
connections, configuration properties and lifecycle.

Components are addressed by instance name. With --host the lookup happens
inside that host's naming context; otherwise at the naming root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "client config file (TOML)")
	flags.StringVar(&opts.nameServer, "name-server", "", "naming service address host:port")
	flags.StringVar(&opts.host, "host", "", "host naming context to address")
	flags.DurationVar(&opts.callTimeout, "timeout", 0, "per-call timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLsCmd(opts),
		newFactoriesCmd(opts),
		newComponentsCmd(opts),
		newLoadCmd(opts),
		newCreateCmd(opts),
		newStateCmd(opts),
		newLifecycleCmd(opts, true),
		newLifecycleCmd(opts, false),
		newGetCmd(opts),
		newSetCmd(opts),
		newConnectCmd(opts),
		newUnbindCmd(opts),
		newApplyCmd(opts),
		newServeCmd(opts),
		newPingCmd(opts),
	)
	return root
}

// load resolves the client config: file first, then flag overrides.
func (o *options) load(cmd *cobra.Command) error {
	observability.InitLogger("rtmctl")
	if o.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.DefaultClientConfig()
	if strings.TrimSpace(o.configPath) != "" {
		loaded, err := config.LoadClientConfig(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("name-server") {
		cfg.NameServer = strings.TrimSpace(o.nameServer)
	}
	if cmd.Flags().Changed("host") {
		cfg.HostName = strings.TrimSpace(o.host)
	}
	if cmd.Flags().Changed("timeout") {
		cfg.CallTimeout = o.callTimeout
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// targetHost is the host used by manager operations.
func (o *options) targetHost() string {
	if o.cfg.HostName != "" {
		return o.cfg.HostName
	}
	return rtm.DefaultHostName()
}

func (o *options) connect(ctx context.Context) (*session, error) {
	transport := wire.NewClient(o.cfg.NameServer,
		wire.WithDialTimeout(o.cfg.DialTimeout),
		wire.WithCallTimeout(o.cfg.CallTimeout),
	)
	client, err := rtm.Dial(ctx, transport)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("naming service %s: %w", o.cfg.NameServer, err)
	}
	return &session{Client: client, transport: transport, host: o.targetHost()}, nil
}

// component finds name inside --host when given, else at the naming root.
func (s *session) component(ctx context.Context, o *options, name string) (*rtm.Component, error) {
	if o.cfg.HostName != "" {
		return s.FindComponentOnHost(ctx, o.cfg.HostName, name)
	}
	return s.FindComponent(ctx, name)
}

// run connects, hands the session to fn and closes it afterwards. Interrupts
// cancel the context.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	s, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
