// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads dokeys settings from defaults, config files,
// environment variables and cobra flags, and persists them back to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full dokeys configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Poll     PollConfig     `mapstructure:"poll" yaml:"poll"`
	Scenario ScenarioConfig `mapstructure:"scenario" yaml:"scenario"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type APIConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Token    string        `mapstructure:"token" yaml:"token"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
}

// PollConfig holds the fixed interval shared by the convergence waiter.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type ScenarioConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Prefix  string        `mapstructure:"prefix" yaml:"prefix"`
	RSABits int           `mapstructure:"rsa_bits" yaml:"rsa_bits"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Defaults returns the built-in values used when nothing else is configured.
func Defaults() map[string]any {
	return map[string]any{
		"api.url":           "https://api.digitalocean.com",
		"api.token":         "",
		"api.timeout":       30 * time.Second,
		"api.page_size":     200,
		"poll.interval":     time.Second,
		"scenario.timeout":  2 * time.Minute,
		"scenario.prefix":   "Test-",
		"scenario.rsa_bits": 2048,
		"log.level":         "info",
	}
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "dokeys")
		default:
			configDir = "/etc/dokeys"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "dokeys")
	}

	return filepath.Join(configDir, "dokeys.yaml"), nil
}

// LoadConfig resolves a T from, in increasing precedence: defaults, the
// first dokeys.yaml found (or the explicit file), DOKEYS_* environment
// variables and the flags of cmd. A missing config file is not an error.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("dokeys")
	v.SetConfigType("yaml")

	if explicitFile != nil && *explicitFile != "" {
		v.SetConfigFile(*explicitFile)
	}

	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("dokeys")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// DIGITALOCEAN_TOKEN is what doctl and most tooling export.
	if err := v.BindEnv("api.token", "DOKEYS_API_TOKEN", "DIGITALOCEAN_TOKEN"); err != nil {
		return c, err
	}

	if cmd != nil {
		if err := bindFlags(v, cmd); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// bindFlags binds every flag that maps onto a config key. Flags are named
// with dashes ("poll-interval"), config keys with dots ("poll.interval").
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key := range Defaults() {
		name := strings.NewReplacer(".", "-", "_", "-").Replace(key)
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// WriteConfigFile persists c as YAML at the user (or system) config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file carries the API token.
	return os.WriteFile(path, data, 0600)
}
