// Package config loads service settings from defaults, an optional YAML file
// and TAXAGENT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TAXAGENT_DATABASE_DSN.
const EnvPrefix = "TAXAGENT"

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Provider ProviderConfig `mapstructure:"provider"`
	Reviewer ReviewerConfig `mapstructure:"reviewer"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ProviderConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AuthURL      string        `mapstructure:"auth_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	UserToken    string        `mapstructure:"user_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	TokenSkew    time.Duration `mapstructure:"token_skew"`
}

type ReviewerConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// WebhookConfig keys callback signatures. Empty fields fall back to the
// provider credentials.
type WebhookConfig struct {
	Secret   string `mapstructure:"secret"`
	ClientID string `mapstructure:"client_id"`
	// Senders with MaxFailures bad signatures within FailureWindow are
	// refused for LockoutFor.
	MaxFailures   int           `mapstructure:"max_failures"`
	FailureWindow time.Duration `mapstructure:"failure_window"`
	LockoutFor    time.Duration `mapstructure:"lockout_for"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("grpc.addr", ":9090")

	v.SetDefault("database.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("provider.base_url", "https://testsandbox.taxbandits.com/v1.7.3")
	v.SetDefault("provider.auth_url", "https://testoauth.expressauth.net/v2/tbsauth")
	v.SetDefault("provider.client_id", "")
	v.SetDefault("provider.client_secret", "")
	v.SetDefault("provider.user_token", "")
	v.SetDefault("provider.timeout", 30*time.Second)
	v.SetDefault("provider.max_attempts", 3)
	v.SetDefault("provider.base_delay", 500*time.Millisecond)
	v.SetDefault("provider.token_skew", 60*time.Second)

	v.SetDefault("reviewer.base_url", "https://api.anthropic.com/v1/messages")
	v.SetDefault("reviewer.api_key", "")
	v.SetDefault("reviewer.model", "claude-sonnet-4-20250514")
	v.SetDefault("reviewer.timeout", 20*time.Second)
	v.SetDefault("reviewer.max_tokens", 1024)

	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.client_id", "")
	v.SetDefault("webhook.max_failures", 5)
	v.SetDefault("webhook.failure_window", 10*time.Minute)
	v.SetDefault("webhook.lockout_for", 15*time.Minute)
}

// Load reads configuration. path may be empty to skip the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = cfg.Provider.ClientSecret
	}
	if cfg.Webhook.ClientID == "" {
		cfg.Webhook.ClientID = cfg.Provider.ClientID
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []error
	if c.Database.DSN == "" {
		problems = append(problems, errors.New("database.dsn is required"))
	}
	if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" || c.Provider.UserToken == "" {
		problems = append(problems, errors.New("provider.client_id, provider.client_secret and provider.user_token are required"))
	}
	if c.Reviewer.APIKey == "" {
		problems = append(problems, errors.New("reviewer.api_key is required"))
	}
	if c.Webhook.Secret == "" {
		problems = append(problems, errors.New("webhook.secret is required"))
	}
	if c.Provider.MaxAttempts < 1 {
		problems = append(problems, fmt.Errorf("provider.max_attempts must be >= 1, got %d", c.Provider.MaxAttempts))
	}
	return errors.Join(problems...)
}
