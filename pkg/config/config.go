// Package config loads client settings from a YAML file with MOONCTL_*
// environment overrides. Command line flags are applied by the binaries on
// top of the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/urmzd/moonctl/pkg/bootstrap"
	"github.com/urmzd/moonctl/pkg/printer"
	"github.com/urmzd/moonctl/pkg/rpc"
	"github.com/urmzd/moonctl/pkg/session"
)

// Config is the resolved client configuration. Policy stays empty unless a
// file or MOONCTL_POLICY sets it, which leaves room for a saved printer's
// policy (WithSavedPolicy) and otherwise means unlimited.
type Config struct {
	Endpoint     string
	Policy       string
	CallTimeout  time.Duration
	RateLimit    float64
	RateBurst    int
	HistoryCount int
	GCodeLogSize int
	LogLevel     string
}

// File mirrors the YAML layout.
type File struct {
	Printer PrinterSection `yaml:"printer"`
	Log     LogSection     `yaml:"log"`
}

type PrinterSection struct {
	Endpoint     string        `yaml:"endpoint"`
	Policy       string        `yaml:"policy"`
	CallTimeout  time.Duration `yaml:"callTimeout"`
	RateLimit    *float64      `yaml:"rateLimit"`
	RateBurst    int           `yaml:"rateBurst"`
	HistoryCount int           `yaml:"historyCount"`
	GCodeLogSize int           `yaml:"gcodeLogSize"`
}

type LogSection struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		RateBurst:    1,
		HistoryCount: bootstrap.DefaultHistoryCount,
		GCodeLogSize: printer.DefaultGCodeLogSize,
		LogLevel:     "info",
	}
}

// Candidates lists the files LoadFromPath tries when no path is given.
func Candidates() []string {
	paths := []string{"moonctl.yaml", filepath.Join("configs", "moonctl.yaml")}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "moonctl", "config.yaml"))
	}
	return paths
}

// LoadFromPath reads configPath, or the first readable candidate when it is
// empty. A missing default file is not an error; an explicit path must exist.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := Candidates()
	if configPath != "" {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return cfg, fmt.Errorf("read config: %w", err)
			}
			continue
		}

		var parsed File
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Merge copies every set field of src over dst.
func Merge(dst *Config, src File) {
	p := src.Printer
	if p.Endpoint != "" {
		dst.Endpoint = p.Endpoint
	}
	if p.Policy != "" {
		dst.Policy = p.Policy
	}
	if p.CallTimeout != 0 {
		dst.CallTimeout = p.CallTimeout
	}
	if p.RateLimit != nil {
		dst.RateLimit = *p.RateLimit
	}
	if p.RateBurst != 0 {
		dst.RateBurst = p.RateBurst
	}
	if p.HistoryCount != 0 {
		dst.HistoryCount = p.HistoryCount
	}
	if p.GCodeLogSize != 0 {
		dst.GCodeLogSize = p.GCodeLogSize
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
}

// ApplyEnvOverrides applies MOONCTL_* variables. Unparseable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("MOONCTL_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := env("MOONCTL_POLICY"); v != "" {
		cfg.Policy = v
	}
	if v := env("MOONCTL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if d, err := time.ParseDuration(env("MOONCTL_CALL_TIMEOUT")); err == nil {
		cfg.CallTimeout = d
	}
	if f, err := strconv.ParseFloat(env("MOONCTL_RATE_LIMIT"), 64); err == nil {
		cfg.RateLimit = f
	}
	if n, err := strconv.Atoi(env("MOONCTL_HISTORY_COUNT")); err == nil {
		cfg.HistoryCount = n
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	if _, err := rpc.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("callTimeout must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// WithSavedPolicy returns c using saved as the send policy when c does not
// set one. An unparseable saved value is ignored.
func (c Config) WithSavedPolicy(saved string) Config {
	if c.Policy != "" || saved == "" {
		return c
	}
	if _, err := rpc.ParsePolicy(saved); err != nil {
		return c
	}
	c.Policy = saved
	return c
}

// Level returns the configured zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SessionOptions builds the options for session.New.
func (c Config) SessionOptions() (session.Options, error) {
	policy, err := rpc.ParsePolicy(c.Policy)
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		RPC: rpc.Options{
			Policy:  policy,
			Timeout: c.CallTimeout,
		},
		HistoryCount: c.HistoryCount,
		GCodeLogSize: c.GCodeLogSize,
	}
	if c.RateLimit > 0 {
		burst := c.RateBurst
		if burst < 1 {
			burst = 1
		}
		opts.RPC.Limiter = rate.NewLimiter(rate.Limit(c.RateLimit), burst)
	}
	return opts, nil
}
