// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Loop    LoopConfig    `mapstructure:"loop" yaml:"loop"`
	Surface SurfaceConfig `mapstructure:"surface" yaml:"surface"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// Provider identifies the supported inference providers.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// ModelConfig defines the inference endpoint and generation parameters.
// For the openai provider, Endpoint may point at any OpenAI-compatible
// server (the original agent ran against a local LM Studio instance).
type ModelConfig struct {
	Provider    Provider      `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LoopConfig tunes the decision loop: the anti-stall window, retry budgets,
// pacing, and the optional per-step frame dump.
type LoopConfig struct {
	// MaxConsecutiveObservations is the number of consecutive observe actions
	// the engine accepts before forcing a committing action.
	MaxConsecutiveObservations int `mapstructure:"max_consecutive_observations" yaml:"max_consecutive_observations"`
	// RetryBudget caps attempts per cycle after malformed or stalled responses.
	RetryBudget int `mapstructure:"retry_budget" yaml:"retry_budget"`
	// TransportRetries caps additional inference attempts after transport faults.
	TransportRetries int           `mapstructure:"transport_retries" yaml:"transport_retries"`
	TransportBackoff time.Duration `mapstructure:"transport_backoff" yaml:"transport_backoff"`
	CycleInterval    time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`
	// SettleDelay is the pause after a committing action before the next capture.
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	InitialStory string        `mapstructure:"initial_story" yaml:"initial_story"`
	// DumpDir, when set, receives one PNG per cycle under a per-run directory.
	DumpDir string `mapstructure:"dump_dir" yaml:"dump_dir"`
}

// SurfaceConfig describes the browser surface the agent perceives and acts on.
type SurfaceConfig struct {
	StartURL       string        `mapstructure:"start_url" yaml:"start_url"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	// FrameWidth/FrameHeight fix the perception raster the model sees,
	// independent of the viewport.
	FrameWidth        int           `mapstructure:"frame_width" yaml:"frame_width"`
	FrameHeight       int           `mapstructure:"frame_height" yaml:"frame_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	InputTimeout      time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
}

// JournalConfig selects the optional cycle journal backend.
type JournalConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`
	URL      string `mapstructure:"url" yaml:"-"`
	Capacity int    `mapstructure:"capacity" yaml:"capacity"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Get returns the process-wide configuration, loading defaults if Load was
// never called (useful in tests).
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return NewDefaultConfig()
	}
	return current
}

// Set installs the process-wide configuration.
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with static defaults, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "franz")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// Model
	v.SetDefault("model.provider", string(ProviderOpenAI))
	v.SetDefault("model.model", "qwen3-vl-2b-instruct")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.endpoint", "http://localhost:1234/v1")
	v.SetDefault("model.api_timeout", 2*time.Minute)
	v.SetDefault("model.temperature", 1.0)
	v.SetDefault("model.max_tokens", 300)

	// Loop
	v.SetDefault("loop.max_consecutive_observations", 2)
	v.SetDefault("loop.retry_budget", 3)
	v.SetDefault("loop.transport_retries", 2)
	v.SetDefault("loop.transport_backoff", 2*time.Second)
	v.SetDefault("loop.cycle_interval", time.Second)
	v.SetDefault("loop.settle_delay", 500*time.Millisecond)
	v.SetDefault("loop.initial_story", "Franz awakens. The screen before him is unknown. He watches and waits.")
	v.SetDefault("loop.dump_dir", "")

	// Surface
	v.SetDefault("surface.start_url", "about:blank")
	v.SetDefault("surface.headless", true)
	v.SetDefault("surface.viewport_width", 1280)
	v.SetDefault("surface.viewport_height", 720)
	v.SetDefault("surface.frame_width", 512)
	v.SetDefault("surface.frame_height", 288)
	v.SetDefault("surface.navigation_timeout", 30*time.Second)
	v.SetDefault("surface.input_timeout", 10*time.Second)

	// Journal
	v.SetDefault("journal.type", "none")
	v.SetDefault("journal.url", "")
	v.SetDefault("journal.capacity", 256)
}

// Load reads configuration from the given file (or the default search path),
// the environment (FRANZ_ prefix) and defaults, in the usual precedence order.
func Load(cfgFile string) (*Config, error) {
	SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".franz"))
		}
		viper.SetConfigName("franz")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FRANZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the loop cannot safely run with.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown model provider %q (supported: %s, %s)", c.Model.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model must not be empty")
	}
	if c.Loop.MaxConsecutiveObservations < 1 {
		return fmt.Errorf("loop.max_consecutive_observations must be at least 1")
	}
	if c.Loop.RetryBudget < 1 {
		return fmt.Errorf("loop.retry_budget must be at least 1")
	}
	if c.Loop.TransportRetries < 0 {
		return fmt.Errorf("loop.transport_retries must not be negative")
	}
	if c.Surface.FrameWidth <= 0 || c.Surface.FrameHeight <= 0 {
		return fmt.Errorf("surface frame dimensions must be positive")
	}
	if c.Surface.ViewportWidth <= 0 || c.Surface.ViewportHeight <= 0 {
		return fmt.Errorf("surface viewport dimensions must be positive")
	}
	switch c.Journal.Type {
	case "none", "memory", "postgres":
	default:
		return fmt.Errorf("unknown journal type %q (supported: none, memory, postgres)", c.Journal.Type)
	}
	if c.Journal.Type == "postgres" && c.Journal.URL == "" {
		return fmt.Errorf("journal.url is required for the postgres journal")
	}
	return nil
}
