package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rtmctl/internal/testutil/testlog"
	"github.com/spf13/cobra"
)

func TestDefaultHealthAddr(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"naming.lab:2809": "naming.lab:2810",
		"10.0.0.5:3809":   "10.0.0.5:2810",
		":2809":           "127.0.0.1:2810",
		"garbage":         "127.0.0.1:2810",
	}
	for in, want := range cases {
		if got := defaultHealthAddr(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}

// resolve runs args against a root whose subcommands do nothing, returning
// the resolved options.
func resolve(t *testing.T, args ...string) (*options, error) {
	t.Helper()
	opts := &options{}
	root := newRootCmdWith(opts)
	for _, c := range root.Commands() {
		c.RunE = func(*cobra.Command, []string) error { return nil }
	}
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	return opts, root.Execute()
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "client.toml")
	body := "name_server = \"file.lab:2809\"\nhost_name = \"from-file\"\ncall_timeout_ms = 2500\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := resolve(t, "--config", path, "--host", "robot", "factories")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opts.cfg.NameServer != "file.lab:2809" {
		t.Fatalf("expected name server from file, got %q", opts.cfg.NameServer)
	}
	if opts.cfg.HostName != "robot" || opts.targetHost() != "robot" {
		t.Fatalf("expected --host to win, got %q", opts.cfg.HostName)
	}
	if opts.cfg.CallTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected call timeout %v", opts.cfg.CallTimeout)
	}

	opts, err = resolve(t, "--name-server", "naming.lab:2809", "--timeout", "3s", "ls")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opts.cfg.NameServer != "naming.lab:2809" || opts.cfg.CallTimeout != 3*time.Second {
		t.Fatalf("unexpected flag-only config %+v", opts.cfg)
	}
}

func TestInvalidNameServerRejected(t *testing.T) {
	testlog.Start(t)
	_, err := resolve(t, "--name-server", ":2809", "factories")
	if err == nil || !strings.Contains(err.Error(), "host required") {
		t.Fatalf("expected name server validation error, got %v", err)
	}
}
