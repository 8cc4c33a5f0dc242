package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// RunConfig controls processing behavior for a single run.
type RunConfig struct {
	// DryRun suppresses all external writes; actions are logged as
	// simulated successes instead.
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// SendReply gates reply sending (only relevant when DryRun is off).
	SendReply bool `mapstructure:"send_reply" yaml:"send_reply"`

	// AddLabel gates application of the processed marker.
	AddLabel bool `mapstructure:"add_label" yaml:"add_label"`

	// BatchLimit is the maximum number of messages processed per run.
	BatchLimit int `mapstructure:"batch_limit" yaml:"batch_limit"`

	// MarkerID is the provider-side label identifying already
	// processed messages. Empty disables idempotency filtering.
	MarkerID string `mapstructure:"marker_id" yaml:"marker_id"`
}

// ZohoConfig holds settings for the Zoho Mail provider, which is reached
// through an MCP JSON-RPC gateway.
type ZohoConfig struct {
	GatewayURL string `mapstructure:"gateway_url" yaml:"gateway_url"`
	AccountID  string `mapstructure:"account_id" yaml:"account_id"`
	ReplyFrom  string `mapstructure:"reply_from" yaml:"reply_from"`
}

// IMAPConfig holds settings for the IMAP/SMTP provider.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`
	Mailbox  string `mapstructure:"mailbox" yaml:"mailbox"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// ProviderConfig selects and configures the mail provider.
type ProviderConfig struct {
	// Type is "zoho" or "imap".
	Type string `mapstructure:"type" yaml:"type"`

	Zoho ZohoConfig `mapstructure:"zoho" yaml:"zoho"`
	IMAP IMAPConfig `mapstructure:"imap" yaml:"imap"`
}

// LLMConfig holds settings for the classification service.
type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider string `mapstructure:"provider" yaml:"provider"`

	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`

	// MaxRetries bounds automatic retries on rate-limit errors.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// CallTimeoutSec bounds a single classification call.
	CallTimeoutSec int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
}

// RulesConfig locates the classification rule file.
type RulesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HistoryConfig configures the local run-history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Config is the top-level application configuration. It is constructed
// once at startup and passed by reference into component constructors.
type Config struct {
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/zmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "zmail", "config.yaml")
}

// defaultHistoryPath returns the default run-history database location.
func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "history.db")
	}
	return filepath.Join(home, ".config", "zmail", "history.db")
}

// defaultConfig returns a sensible default configuration.
func defaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			SendReply:  true,
			AddLabel:   true,
			BatchLimit: 10,
		},
		Provider: ProviderConfig{
			Type: "zoho",
			IMAP: IMAPConfig{
				Mailbox: "INBOX",
				TLS:     true,
			},
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			MaxTokens:      1024,
			MaxRetries:     3,
			CallTimeoutSec: 10,
		},
		Rules: RulesConfig{
			Path: filepath.Join(filepath.Dir(DefaultConfigPath()), "rules.yaml"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. Missing file resolves to defaults. Any key can be overridden
// through the environment with a ZMAIL_ prefix (e.g. ZMAIL_RUN_DRY_RUN).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ZMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("run.dry_run", def.Run.DryRun)
	v.SetDefault("run.send_reply", def.Run.SendReply)
	v.SetDefault("run.add_label", def.Run.AddLabel)
	v.SetDefault("run.batch_limit", def.Run.BatchLimit)
	v.SetDefault("run.marker_id", def.Run.MarkerID)
	v.SetDefault("provider.type", def.Provider.Type)
	v.SetDefault("provider.imap.mailbox", def.Provider.IMAP.Mailbox)
	v.SetDefault("provider.imap.tls", def.Provider.IMAP.TLS)
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.max_retries", def.LLM.MaxRetries)
	v.SetDefault("llm.call_timeout_sec", def.LLM.CallTimeoutSec)
	v.SetDefault("rules.path", def.Rules.Path)
	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.path", def.History.Path)

	// A missing file is fine: defaults and environment overrides still
	// apply.
	if err := v.ReadInConfig(); err != nil {
		_, pathErr := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !pathErr && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Run.BatchLimit < 1 {
		return fmt.Errorf("run.batch_limit must be at least 1, got %d", c.Run.BatchLimit)
	}

	switch c.Provider.Type {
	case "zoho", "imap":
	default:
		return fmt.Errorf("unknown provider.type %q", c.Provider.Type)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be in [0,1], got %v", c.LLM.Temperature)
	}

	return nil
}
