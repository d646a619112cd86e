// Package config provides configuration management for devserve using Viper
// for flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files (.devserve.yml), environment
// variable overrides with a DEVSERVE_ prefix, and validation. It manages the
// served root, server binding, base path, proxy rules, watch ignore patterns,
// and the env-exposure prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server            `yaml:"server" mapstructure:"server"`
	Watch  Watch             `yaml:"watch" mapstructure:"watch"`
	Proxy  map[string]string `yaml:"proxy" mapstructure:"proxy"`
	Env    Env               `yaml:"env" mapstructure:"env"`
}

type Server struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	Host   string `yaml:"host" mapstructure:"host"`
	Root   string `yaml:"root" mapstructure:"root"`
	Base   string `yaml:"base" mapstructure:"base"`
	Open   bool   `yaml:"open" mapstructure:"open"`
	Silent bool   `yaml:"silent" mapstructure:"silent"`
}

type Watch struct {
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`
	DebounceMs int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

type Env struct {
	// Prefix selects which environment variables the env endpoint may
	// expose. Empty disables the endpoint entirely.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// Default returns the configuration used when no file or flags are present.
func Default() *Config {
	return &Config{
		Server: Server{
			Port: 8080,
			Host: "localhost",
			Root: ".",
		},
		Watch: Watch{
			Ignore:     []string{"node_modules", ".git"},
			DebounceMs: 100,
		},
		Proxy: map[string]string{},
	}
}

// Load builds the effective configuration from viper (config file, env vars,
// and bound flags), applies defaults, and validates the result. The served
// root is returned as an absolute path.
func Load() (*Config, error) {
	config := Default()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	// Viper's slice handling loses explicitly-set empty values; re-read the
	// ignore list when the key is present.
	if viper.IsSet("watch.ignore") {
		config.Watch.Ignore = viper.GetStringSlice("watch.ignore")
	}
	if viper.IsSet("proxy") {
		config.Proxy = viper.GetStringMapString("proxy")
	}

	if config.Server.Root == "" {
		config.Server.Root = "."
	}
	root, err := filepath.Abs(config.Server.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", config.Server.Root, err)
	}
	config.Server.Root = root

	config.Server.Base = NormalizeBase(config.Server.Base)

	if config.Watch.DebounceMs <= 0 {
		config.Watch.DebounceMs = 100
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// NormalizeBase canonicalizes a base path: empty stays empty, anything else
// gets a leading slash and no trailing slash.
func NormalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}

func validate(config *Config) error {
	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	for prefix, target := range config.Proxy {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("proxy prefix %q must start with /", prefix)
		}
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			return fmt.Errorf("proxy target %q must be an http(s) URL", target)
		}
	}
	return nil
}

func validateServer(server *Server) error {
	// Port 0 is allowed for system-assigned ports in tests.
	if server.Port < 0 || server.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", server.Port)
	}

	if server.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(server.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	info, err := os.Stat(server.Root)
	if err != nil {
		return fmt.Errorf("root %q: %w", server.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %q is not a directory", server.Root)
	}

	return nil
}
