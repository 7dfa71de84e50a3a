// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	cfg "github.com/flavienbert/digitalocean/internal/config"
)

// isolate points the user config dir at a temp dir and moves into another
// temp dir so no real dokeys.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Setenv("DOKEYS_API_TOKEN", "")
	t.Setenv("DIGITALOCEAN_TOKEN", "")
	chdir(t, t.TempDir())
	return tmp
}

// chdir changes the working directory for the rest of the test and restores
// the previous one on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.API.URL != "https://api.digitalocean.com" {
		t.Fatalf("unexpected api url %q", got.API.URL)
	}
	if got.Poll.Interval != time.Second {
		t.Fatalf("unexpected poll interval %v", got.Poll.Interval)
	}
	if got.Scenario.Timeout != 2*time.Minute {
		t.Fatalf("unexpected scenario timeout %v", got.Scenario.Timeout)
	}
	if got.Scenario.Prefix != "Test-" {
		t.Fatalf("unexpected prefix %q", got.Scenario.Prefix)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	isolate(t)
	yaml := "api:\n  url: http://127.0.0.1:9999\npoll:\n  interval: 250ms\nscenario:\n  prefix: CI-\n"
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.API.URL != "http://127.0.0.1:9999" {
		t.Fatalf("expected url from file, got %q", got.API.URL)
	}
	if got.Poll.Interval != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got.Poll.Interval)
	}
	if got.Scenario.Prefix != "CI-" {
		t.Fatalf("expected CI-, got %q", got.Scenario.Prefix)
	}
	// untouched keys keep their defaults
	if got.API.PageSize != 200 {
		t.Fatalf("expected default page size, got %d", got.API.PageSize)
	}
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	isolate(t)
	t.Setenv("DIGITALOCEAN_TOKEN", "do-token")
	t.Setenv("DOKEYS_SCENARIO_PREFIX", "Env-")

	cmd := &cobra.Command{}
	cmd.Flags().Duration("poll-interval", 0, "")
	if err := cmd.Flags().Set("poll-interval", "3s"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.API.Token != "do-token" {
		t.Fatalf("expected token from DIGITALOCEAN_TOKEN, got %q", got.API.Token)
	}
	if got.Scenario.Prefix != "Env-" {
		t.Fatalf("expected prefix from env, got %q", got.Scenario.Prefix)
	}
	if got.Poll.Interval != 3*time.Second {
		t.Fatalf("expected flag to win, got %v", got.Poll.Interval)
	}
}

func TestWriteConfigFile_CreatesFile(t *testing.T) {
	isolate(t)

	c := cfg.Config{}
	c.API.URL = "http://example.invalid"
	c.Poll.Interval = time.Second

	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}

	path, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file at %s, stat error: %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}
