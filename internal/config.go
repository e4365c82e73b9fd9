package internal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration shared by the webhook receiver,
// the demo API, and the sample-data generator.
type Config struct {
	// Server holds HTTP server settings for the webhook receiver.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	// Webhook holds the settings consumed by the security webhook endpoint.
	Webhook WebhookConfig `yaml:"webhook"`
	// Loki holds the log sink settings used by the security event emitter.
	Loki LokiConfig `yaml:"loki"`
	// Forwarder optionally mirrors security verdicts onto a message bus.
	Forwarder ForwarderConfig `yaml:"forwarder"`
	// DemoAPI holds settings for the CRUD demo service.
	DemoAPI DemoAPIConfig `yaml:"demo_api"`
	// Generator holds settings for the SIEM sample-data generator.
	Generator GeneratorConfig `yaml:"generator"`
}

// WebhookConfig configures signature verification for the webhook endpoint.
type WebhookConfig struct {
	Path   string `yaml:"path"`
	Secret string `yaml:"secret"`
	// SkipVerification disables signature checking. Only meant for trusted
	// network paths.
	SkipVerification bool `yaml:"skip_verification"`
}

// LokiConfig configures the push endpoint of the external log sink.
type LokiConfig struct {
	URL           string `yaml:"url"`
	PushTimeoutMS int64  `yaml:"push_timeout_ms"`
	Job           string `yaml:"job"`
	Service       string `yaml:"service"`
}

// ForwarderConfig selects and configures message-bus drivers for mirroring
// security verdicts.
type ForwarderConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Topic      string           `yaml:"topic"`
	Driver     string           `yaml:"driver"`
	Drivers    []string         `yaml:"drivers"`
	GoChannel  GoChannelConfig  `yaml:"gochannel"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	NATS       NATSConfig       `yaml:"nats"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	SQL        SQLConfig        `yaml:"sql"`
	HTTP       HTTPConfig       `yaml:"http"`
	RiverQueue RiverQueueConfig `yaml:"riverqueue"`
}

// GoChannelConfig holds configuration for the in-process GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer int64 `yaml:"output_buffer"`
	Persistent          bool  `yaml:"persistent"`
}

// KafkaConfig holds configuration for the Kafka driver.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming driver.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP driver.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL driver.
type SQLConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Dialect          string `yaml:"dialect"`
	InitializeSchema bool   `yaml:"initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP driver.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the River job-queue driver.
type RiverQueueConfig struct {
	DSN         string `yaml:"dsn"`
	Queue       string `yaml:"queue"`
	Kind        string `yaml:"kind"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// DemoAPIConfig holds settings for the CRUD demo service.
type DemoAPIConfig struct {
	Port int `yaml:"port"`
}

// GeneratorConfig holds settings for the SIEM sample-data generator.
type GeneratorConfig struct {
	LokiURL       string `yaml:"loki_url"`
	PushTimeoutMS int64  `yaml:"push_timeout_ms"`
	// WebhookURL, when set, makes the generator post signed synthetic Git
	// push events to the receiver in addition to fabricated system logs.
	WebhookURL    string `yaml:"webhook_url"`
	MinIntervalMS int64  `yaml:"min_interval_ms"`
	MaxIntervalMS int64  `yaml:"max_interval_ms"`
}

// LoadConfig loads the configuration from a YAML file. It expands
// environment variables and applies default values.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhook"
	}
	if cfg.Webhook.Secret == "" {
		cfg.Webhook.Secret = "default-secret-change-me"
	}
	if cfg.Loki.URL == "" {
		cfg.Loki.URL = "http://loki.monitoring.svc.cluster.local:3100/loki/api/v1/push"
	}
	if cfg.Loki.PushTimeoutMS == 0 {
		cfg.Loki.PushTimeoutMS = 5000
	}
	if cfg.Loki.Job == "" {
		cfg.Loki.Job = "webhook-security"
	}
	if cfg.Loki.Service == "" {
		cfg.Loki.Service = "webhook-receiver"
	}
	if cfg.Forwarder.Topic == "" {
		cfg.Forwarder.Topic = "security.verdicts"
	}
	if cfg.Forwarder.Driver == "" {
		cfg.Forwarder.Driver = "gochannel"
	}
	if cfg.Forwarder.GoChannel.OutputChannelBuffer == 0 {
		cfg.Forwarder.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Forwarder.HTTP.Mode == "" {
		cfg.Forwarder.HTTP.Mode = "topic_url"
	}
	if cfg.Forwarder.RiverQueue.Queue == "" {
		cfg.Forwarder.RiverQueue.Queue = "default"
	}
	if cfg.Forwarder.RiverQueue.Kind == "" {
		cfg.Forwarder.RiverQueue.Kind = "sechooks.verdict"
	}
	if cfg.Forwarder.RiverQueue.MaxAttempts == 0 {
		cfg.Forwarder.RiverQueue.MaxAttempts = 25
	}
	if cfg.DemoAPI.Port == 0 {
		cfg.DemoAPI.Port = 8081
	}
	if cfg.Generator.LokiURL == "" {
		cfg.Generator.LokiURL = cfg.Loki.URL
	}
	if cfg.Generator.PushTimeoutMS == 0 {
		cfg.Generator.PushTimeoutMS = cfg.Loki.PushTimeoutMS
	}
	if cfg.Generator.MinIntervalMS == 0 {
		cfg.Generator.MinIntervalMS = 30000
	}
	if cfg.Generator.MaxIntervalMS == 0 {
		cfg.Generator.MaxIntervalMS = 120000
	}
}

func validate(cfg *Config) error {
	if cfg.Generator.MaxIntervalMS < cfg.Generator.MinIntervalMS {
		return fmt.Errorf("generator max_interval_ms %d is below min_interval_ms %d",
			cfg.Generator.MaxIntervalMS, cfg.Generator.MinIntervalMS)
	}
	if !cfg.Webhook.SkipVerification && cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required unless skip_verification is set")
	}
	return nil
}
