package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/rtmctl/internal/config"
	"github.com/danmuck/rtmctl/internal/namesvc"
	"github.com/danmuck/rtmctl/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "naming service config file (TOML)")
	listen := flag.String("listen", "", "override naming_listen_addr")
	flag.Parse()

	observability.InitLogger("rtmnamed")

	cfg := config.DefaultNamingConfig()
	if strings.TrimSpace(*configPath) != "" {
		loaded, err := config.LoadNamingConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rtmnamed: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if strings.TrimSpace(*listen) != "" {
		cfg.ListenAddr = strings.TrimSpace(*listen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := namesvc.NewService(cfg).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rtmnamed: %v\n", err)
		os.Exit(1)
	}
}
