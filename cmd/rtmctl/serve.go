package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/rtmctl/internal/api"
	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/namesvc"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := opts.cfg.HTTPListenAddr
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			if addr == "" {
				return fmt.Errorf("no http listen address configured")
			}
			gin.SetMode(gin.ReleaseMode)
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				srv := api.New("rtmctl", s.Client, api.Options{
					DefaultHost: s.host,
					CorsOrigins: opts.cfg.CorsOrigins,
					CallTimeout: opts.cfg.CallTimeout,
					Token:       opts.cfg.APIToken,
				})
				return srv.Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", config.DefaultHTTPListenAddr, "HTTP listen address")
	return cmd
}

func newPingCmd(opts *options) *cobra.Command {
	var healthAddr string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the naming service health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := healthAddr
			if addr == "" {
				addr = defaultHealthAddr(opts.cfg.NameServer)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			start := time.Now()
			status, err := namesvc.Probe(ctx, addr, opts.cfg.CallTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", addr, status, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "health endpoint (default: name server host, port 2810)")
	return cmd
}

// defaultHealthAddr pairs the name server host with the default health port.
func defaultHealthAddr(nameServer string) string {
	host, _, err := net.SplitHostPort(nameServer)
	if err != nil || host == "" {
		host = "127.0.0.1"
	}
	_, port, _ := net.SplitHostPort(config.DefaultHealthListenAddr)
	return net.JoinHostPort(host, port)
}
