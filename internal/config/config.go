package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, environment
// variables and the optional configs/.env file.
type Config struct {
	AppName       string `mapstructure:"app_name"`
	Env           string `mapstructure:"app_env"`
	LogLevel      string `mapstructure:"log_level"`
	ProfilesFile  string `mapstructure:"profiles_file"`
	NotifiersFile string `mapstructure:"notifiers_file"`
	Profile       string `mapstructure:"profile"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
	DemoAddr      string `mapstructure:"demo_addr"`

	// Paths are requested concurrently, Burst times each.
	Paths []string `mapstructure:"paths"`
	Burst int      `mapstructure:"burst"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	RefreshHintTTLSeconds int64         `mapstructure:"refresh_hint_ttl_seconds"`
	RefreshHintTTL        time.Duration `mapstructure:"-"`
	RefreshTimeoutSeconds int64         `mapstructure:"refresh_timeout_seconds"`
	RefreshTimeout        time.Duration `mapstructure:"-"`
}

// Load reads configuration from command-line args, environment variables and
// configs/.env. Flags take precedence over the environment.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-request")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("profiles_file", "./configs/profiles.yaml")
	v.SetDefault("notifiers_file", "")
	v.SetDefault("profile", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("demo_addr", "127.0.0.1:8888")
	v.SetDefault("paths", []string{"/api/profile"})
	v.SetDefault("burst", 1)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("refresh_hint_ttl_seconds", 0) // unbounded
	v.SetDefault("refresh_timeout_seconds", 0)  // unbounded

	v.AutomaticEnv()

	fs := pflag.NewFlagSet("samvad-request", pflag.ContinueOnError)
	fs.String("profiles-file", "", "client profiles registry (YAML or JSON)")
	fs.String("notifiers-file", "", "notification sinks registry (YAML or JSON)")
	fs.String("profile", "", "profile id to run; defaults to the first profile")
	fs.StringSlice("paths", nil, "request paths fired concurrently")
	fs.Int("burst", 0, "number of times each path is requested")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("demo-addr", "", "listen address of the demo auth server")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Env values arrive as a single comma separated string.
	cfg.Paths = splitPaths(cfg.Paths)

	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("invalid burst (must be positive)")
	}
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("at least one request path is required")
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	if cfg.RefreshHintTTLSeconds < 0 {
		return nil, fmt.Errorf("invalid refresh_hint_ttl_seconds (must not be negative)")
	}
	if cfg.RefreshTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid refresh_timeout_seconds (must not be negative)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	cfg.RefreshHintTTL = time.Duration(cfg.RefreshHintTTLSeconds) * time.Second
	cfg.RefreshTimeout = time.Duration(cfg.RefreshTimeoutSeconds) * time.Second

	return &cfg, nil
}

// bindFlags binds flags that were set explicitly, mapping dashes to the
// underscore keys used by the environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func splitPaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		for _, part := range strings.Split(p, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
