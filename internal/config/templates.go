package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	KindClient = "client"
	KindNaming = "naming"
)

// Template renders the defaults for kind as a TOML document.
func Template(kind string) (string, error) {
	var doc any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		cfg := DefaultClientConfig()
		doc = clientFile{
			NameServer:     cfg.NameServer,
			HostName:       "localhost",
			CallTimeoutMS:  cfg.CallTimeout.Milliseconds(),
			DialTimeoutMS:  cfg.DialTimeout.Milliseconds(),
			HTTPListenAddr: cfg.HTTPListenAddr,
			CorsOrigins:    cfg.CorsOrigins,
		}
	case KindNaming:
		cfg := DefaultNamingConfig()
		doc = namingFile{
			NamingListenAddr: cfg.ListenAddr,
			AdvertiseAddr:    "127.0.0.1:2809",
			HealthListenAddr: cfg.HealthListenAddr,
			IdleTimeoutMS:    cfg.IdleTimeout.Milliseconds(),
		}
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		_, err := LoadClientConfig(path)
		return err
	case KindNaming:
		_, err := LoadNamingConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}
