package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type clientFile struct {
	NameServer     string   `toml:"name_server"`
	HostName       string   `toml:"host_name"`
	CallTimeoutMS  int64    `toml:"call_timeout_ms"`
	DialTimeoutMS  int64    `toml:"dial_timeout_ms"`
	HTTPListenAddr string   `toml:"http_listen_addr"`
	CorsOrigins    []string `toml:"cors_origins"`
	APIToken       string   `toml:"api_token,omitempty"`
}

type namingFile struct {
	NamingListenAddr string `toml:"naming_listen_addr"`
	AdvertiseAddr    string `toml:"advertise_addr"`
	HealthListenAddr string `toml:"health_listen_addr"`
	IdleTimeoutMS    int64  `toml:"idle_timeout_ms"`
}

// LoadClientConfig overlays the keys present in path on DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name_server") {
		cfg.NameServer = strings.TrimSpace(raw.NameServer)
	}
	if meta.IsDefined("host_name") {
		cfg.HostName = strings.TrimSpace(raw.HostName)
	}
	if meta.IsDefined("call_timeout_ms") {
		cfg.CallTimeout = time.Duration(raw.CallTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("dial_timeout_ms") {
		cfg.DialTimeout = time.Duration(raw.DialTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("http_listen_addr") {
		cfg.HTTPListenAddr = strings.TrimSpace(raw.HTTPListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("api_token") {
		cfg.APIToken = strings.TrimSpace(raw.APIToken)
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// LoadNamingConfig overlays the keys present in path on DefaultNamingConfig.
func LoadNamingConfig(path string) (NamingConfig, error) {
	cfg := DefaultNamingConfig()

	var raw namingFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return NamingConfig{}, fmt.Errorf("load naming config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return NamingConfig{}, fmt.Errorf("load naming config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("naming_listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.NamingListenAddr)
	}
	if meta.IsDefined("advertise_addr") {
		cfg.AdvertiseAddr = strings.TrimSpace(raw.AdvertiseAddr)
	}
	if meta.IsDefined("health_listen_addr") {
		cfg.HealthListenAddr = strings.TrimSpace(raw.HealthListenAddr)
	}
	if meta.IsDefined("idle_timeout_ms") {
		cfg.IdleTimeout = time.Duration(raw.IdleTimeoutMS) * time.Millisecond
	}

	if err := ValidateNamingConfig(cfg); err != nil {
		return NamingConfig{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
