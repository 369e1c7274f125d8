package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	env "github.com/netflix/go-env"

	"github.com/ca-srg/arxivbot/internal/dify"
)

const (
	DefaultDifyAPIURL   = dify.DefaultEndpoint
	DefaultDifyUser     = dify.DefaultUser
	DefaultDifyInputKey = dify.DefaultInputKey
	DefaultDifyTimeout  = dify.DefaultTimeout
)

// Config holds every runtime setting. It is loaded once at startup and never mutated afterwards.
type Config struct {
	// Slack
	SlackBotToken        string `env:"SLACK_BOT_TOKEN"`
	SlackAppToken        string `env:"SLACK_APP_TOKEN"`
	TargetChannelID      string `env:"TARGET_CHANNEL_ID"`
	ReplyInThread        bool   `env:"SLACK_REPLY_IN_THREAD,default=false"`
	RateChannelPerMinute int    `env:"SLACK_RATE_CHANNEL_PER_MINUTE,default=30"`
	RateGlobalPerMinute  int    `env:"SLACK_RATE_GLOBAL_PER_MINUTE,default=60"`

	// Dify workflow API
	DifyAPIKey   string        `env:"DIFY_API_KEY"`
	DifyAPIURL   string        `env:"DIFY_API_URL"`
	DifyUser     string        `env:"DIFY_USER"`
	DifyInputKey string        `env:"DIFY_INPUT_KEY"`
	DifyTimeout  time.Duration `env:"DIFY_TIMEOUT,default=120s"`

	// OpenTelemetry
	OTelEnabled              bool    `env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `env:"OTEL_SERVICE_NAME,default=arxivbot"`
	OTelExporterOTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string  `env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string  `env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadDify reads only the settings needed to call the Dify API (used by the analyze command).
func LoadDify() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validateDify(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.SlackBotToken = strings.TrimSpace(cfg.SlackBotToken)
	cfg.SlackAppToken = strings.TrimSpace(cfg.SlackAppToken)
	cfg.TargetChannelID = strings.TrimSpace(cfg.TargetChannelID)
	cfg.DifyAPIKey = strings.TrimSpace(cfg.DifyAPIKey)

	if strings.TrimSpace(cfg.DifyAPIURL) == "" {
		cfg.DifyAPIURL = DefaultDifyAPIURL
	}
	if strings.TrimSpace(cfg.DifyUser) == "" {
		cfg.DifyUser = DefaultDifyUser
	}
	if strings.TrimSpace(cfg.DifyInputKey) == "" {
		cfg.DifyInputKey = DefaultDifyInputKey
	}
	if cfg.RateChannelPerMinute <= 0 {
		cfg.RateChannelPerMinute = 30
	}
	if cfg.RateGlobalPerMinute <= 0 {
		cfg.RateGlobalPerMinute = 60
	}
}

// Validate reports every missing required variable at once, then checks value formats.
func (c *Config) Validate() error {
	var missing []string
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.SlackAppToken == "" {
		missing = append(missing, "SLACK_APP_TOKEN")
	}
	if c.TargetChannelID == "" {
		missing = append(missing, "TARGET_CHANNEL_ID")
	}
	if c.DifyAPIKey == "" {
		missing = append(missing, "DIFY_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return fmt.Errorf("SLACK_BOT_TOKEN must be a bot token (xoxb-)")
	}
	if !strings.HasPrefix(c.SlackAppToken, "xapp-") {
		return fmt.Errorf("SLACK_APP_TOKEN must be an app-level token (xapp-) for Socket Mode")
	}

	return c.validateDify()
}

func (c *Config) validateDify() error {
	if c.DifyAPIKey == "" {
		return fmt.Errorf("missing required environment variables: DIFY_API_KEY")
	}

	parsedURL, err := url.Parse(c.DifyAPIURL)
	if err != nil {
		return fmt.Errorf("invalid DIFY_API_URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("DIFY_API_URL scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("DIFY_API_URL must include a valid host")
	}

	if c.DifyTimeout <= 0 {
		return fmt.Errorf("DIFY_TIMEOUT must be greater than 0")
	}
	return nil
}
