package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrt/logging"
)

// maxConfigSize bounds the size of a configuration file.
const maxConfigSize = 1 << 20

// Config represents the runtime configuration.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Model     ModelConfig      `yaml:"model"`
	Runtime   RuntimeConfig    `yaml:"runtime"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text or console
	AddSource bool   `yaml:"add_source"`
}

// ModelConfig selects and tunes the chat completion client.
type ModelConfig struct {
	Provider          string        `yaml:"provider"` // see Providers
	Name              string        `yaml:"name"`
	Instruction       string        `yaml:"instruction"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	BaseURL           string        `yaml:"base_url"`
	MaxCalls          int           `yaml:"max_calls"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`

	// Region selects the AWS region for provider bedrock.
	Region string `yaml:"region,omitempty"`
	// Upstream names the gollm provider (ollama, groq, mistral, ...) for
	// provider gollm.
	Upstream string `yaml:"upstream,omitempty"`

	OpenAIKey    string `yaml:"openai_key"`
	AnthropicKey string `yaml:"anthropic_key"`
	GeminiKey    string `yaml:"gemini_key,omitempty"`
	// APIKey authenticates providers gollm, compat and azure.
	APIKey string `yaml:"api_key,omitempty"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig controls memoization of model completions.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none, memory or redis
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr,omitempty"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db,omitempty"`
}

// ScheduleConfig sends Message to the assistant on a cron schedule.
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Spec    string `yaml:"spec"`
	Message string `yaml:"message"`
}

// Providers lists the accepted values of model.provider.
var Providers = []string{"mock", "openai", "anthropic", "gemini", "bedrock", "gollm", "compat", "azure"}

// RuntimeConfig holds runtime and observability settings.
type RuntimeConfig struct {
	MetricsAddr   string `yaml:"metrics_addr"`
	TraceExporter string `yaml:"trace_exporter"` // none, stdout or otlp
	ServiceName   string `yaml:"service_name"`
	OTLPEndpoint  string `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure  bool   `yaml:"otlp_insecure,omitempty"`
	// ValidatePayloads rejects struct payloads with empty required fields
	// before delivery.
	ValidatePayloads bool `yaml:"validate_payloads"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and environment
// overrides. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetDefaults fills unset fields. The model name default depends on the
// provider.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "mock"
	}
	if c.Model.Name == "" {
		switch c.Model.Provider {
		case "openai":
			c.Model.Name = "gpt-4o-mini"
		case "anthropic":
			c.Model.Name = "claude-3-5-haiku-latest"
		case "gemini":
			c.Model.Name = "gemini-2.0-flash"
		case "bedrock":
			c.Model.Name = "anthropic.claude-3-5-haiku-20241022-v1:0"
		case "gollm":
			c.Model.Name = "llama3.2"
		case "compat", "azure":
			c.Model.Name = "gpt-4o-mini"
		default:
			c.Model.Name = "mock"
		}
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 1024
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 60 * time.Second
	}
	if c.Model.Cache.Backend == "" {
		c.Model.Cache.Backend = "none"
	}
	if c.Model.Cache.TTL == 0 {
		c.Model.Cache.TTL = time.Hour
	}
	for i := range c.Schedules {
		if c.Schedules[i].Name == "" {
			c.Schedules[i].Name = fmt.Sprintf("schedule-%d", i+1)
		}
	}
	if c.Runtime.TraceExporter == "" {
		c.Runtime.TraceExporter = "none"
	}
	if c.Runtime.ServiceName == "" {
		c.Runtime.ServiceName = "agentrt"
	}
}

// applyEnv loads secrets and the log level from the environment. Keys in the
// file win over the environment; AGENTRT_LOG_LEVEL wins over the file.
func (c *Config) applyEnv() {
	if c.Model.OpenAIKey == "" {
		c.Model.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model.AnthropicKey == "" {
		c.Model.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Model.GeminiKey == "" {
		c.Model.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if lvl := os.Getenv("AGENTRT_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json, text or console, got %q", c.Log.Format))
	}

	switch c.Model.Provider {
	case "mock":
	case "openai":
		if c.Model.OpenAIKey == "" {
			errs = append(errs, errors.New("model.openai_key or OPENAI_API_KEY is required for provider openai"))
		}
	case "anthropic":
		if c.Model.AnthropicKey == "" {
			errs = append(errs, errors.New("model.anthropic_key or ANTHROPIC_API_KEY is required for provider anthropic"))
		}
	case "gemini":
		if c.Model.GeminiKey == "" {
			errs = append(errs, errors.New("model.gemini_key or GEMINI_API_KEY is required for provider gemini"))
		}
	case "bedrock":
	case "gollm":
		if c.Model.Upstream == "" {
			errs = append(errs, errors.New("model.upstream is required for provider gollm"))
		}
	case "compat", "azure":
		if c.Model.BaseURL == "" {
			errs = append(errs, fmt.Errorf("model.base_url is required for provider %s", c.Model.Provider))
		}
		if c.Model.Provider == "azure" && c.Model.APIKey == "" {
			errs = append(errs, errors.New("model.api_key is required for provider azure"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}

	switch c.Model.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Model.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("model.cache.redis_addr is required for cache backend redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Model.Cache.Backend))
	}

	if c.Model.Cache.TTL < 0 {
		errs = append(errs, errors.New("model.cache.ttl must not be negative"))
	}

	if c.Model.MaxCalls < 0 {
		errs = append(errs, errors.New("model.max_calls must not be negative"))
	}

	if c.Model.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("model.requests_per_second must not be negative"))
	}

	switch c.Runtime.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Runtime.TraceExporter))
	}

	for _, sc := range c.Schedules {
		if _, err := cron.ParseStandard(sc.Spec); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: invalid spec %q: %w", sc.Name, sc.Spec, err))
		}
		if sc.Message == "" {
			errs = append(errs, fmt.Errorf("schedule %s: message is required", sc.Name))
		}
	}

	return errors.Join(errs...)
}

// LoggerConfig translates the log section into a logging configuration.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	return &logging.LoggerConfig{
		Level:     level,
		Format:    c.Log.Format,
		Output:    os.Stderr,
		AddSource: c.Log.AddSource,
	}, nil
}
