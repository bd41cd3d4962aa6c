package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/danmuck/rtmctl/internal/orb/wire"
)

const (
	DefaultNameServer       = "127.0.0.1:2809"
	DefaultHTTPListenAddr   = "127.0.0.1:9080"
	DefaultNamingListenAddr = ":2809"
	DefaultHealthListenAddr = ":2810"
)

// ClientConfig configures rtmctl: where the naming service lives, which host
// to address by default, and the HTTP control API.
type ClientConfig struct {
	NameServer     string
	HostName       string
	CallTimeout    time.Duration
	DialTimeout    time.Duration
	HTTPListenAddr string
	CorsOrigins    []string
	// APIToken guards mutating HTTP routes when set.
	APIToken string
}

// NamingConfig configures rtmnamed.
type NamingConfig struct {
	ListenAddr       string
	AdvertiseAddr    string
	HealthListenAddr string
	IdleTimeout      time.Duration
}

// DefaultClientConfig leaves HostName empty; callers fall back to the local host name.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		NameServer:     DefaultNameServer,
		CallTimeout:    wire.DefaultCallTimeout,
		DialTimeout:    wire.DefaultDialTimeout,
		HTTPListenAddr: DefaultHTTPListenAddr,
		CorsOrigins:    []string{"http://localhost:3000"},
	}
}

func DefaultNamingConfig() NamingConfig {
	return NamingConfig{
		ListenAddr:       DefaultNamingListenAddr,
		HealthListenAddr: DefaultHealthListenAddr,
		IdleTimeout:      wire.DefaultIdleTimeout,
	}
}

func ValidateClientConfig(cfg ClientConfig) error {
	if err := validateHostPort("name_server", cfg.NameServer, true); err != nil {
		return err
	}
	if cfg.CallTimeout <= 0 {
		return fmt.Errorf("client config call_timeout_ms must be positive")
	}
	if cfg.DialTimeout <= 0 {
		return fmt.Errorf("client config dial_timeout_ms must be positive")
	}
	if strings.TrimSpace(cfg.HTTPListenAddr) != "" {
		if err := validateHostPort("http_listen_addr", cfg.HTTPListenAddr, false); err != nil {
			return err
		}
	}
	for i, origin := range cfg.CorsOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("client config cors_origins[%d] is empty", i)
		}
	}
	return nil
}

func ValidateNamingConfig(cfg NamingConfig) error {
	if err := validateHostPort("listen_addr", cfg.ListenAddr, false); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.AdvertiseAddr) != "" {
		if err := validateHostPort("advertise_addr", cfg.AdvertiseAddr, true); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.HealthListenAddr) != "" {
		if err := validateHostPort("health_listen_addr", cfg.HealthListenAddr, false); err != nil {
			return err
		}
	}
	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("naming config idle_timeout_ms must not be negative")
	}
	return nil
}

// validateHostPort checks addr is host:port; needHost rejects ":port" forms.
func validateHostPort(field, addr string, needHost bool) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("config %s is required", field)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("config %s: %w", field, err)
	}
	if port == "" {
		return fmt.Errorf("config %s: port required", field)
	}
	if needHost && host == "" {
		return fmt.Errorf("config %s: host required", field)
	}
	return nil
}
