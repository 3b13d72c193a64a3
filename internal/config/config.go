// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Model      ModelConfig      `mapstructure:"model" yaml:"model"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
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

// ModelProvider identifies a language-model backend.
type ModelProvider string

const (
	ProviderGemini ModelProvider = "gemini"
)

// ModelConfig defines the language-model provider used for code synthesis.
type ModelConfig struct {
	Provider    ModelProvider `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// Retries and RetryDelay bound the generator-level retry loop around each
	// provider call. The HTTP client additionally retries transient statuses.
	Retries    int           `mapstructure:"retries" yaml:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// AutomationConfig tunes the instruction processing loop.
type AutomationConfig struct {
	// RetryAttempts is the number of execution attempts per instruction.
	// A value <= 1 enables fail-fast mode: the first failed instruction
	// stops the whole run.
	RetryAttempts int `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	// ActionDelay is inserted between consecutive instructions.
	ActionDelay time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	// SettleDelay is applied after each successful execution.
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	CacheSnippets     bool          `mapstructure:"cache_snippets" yaml:"cache_snippets"`
	CacheSize         int           `mapstructure:"cache_size" yaml:"cache_size"`
	ScreenshotOnError bool          `mapstructure:"screenshot_on_error" yaml:"screenshot_on_error"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	CloseBrowser      bool          `mapstructure:"close_browser" yaml:"close_browser"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Model --
	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.model", "gemini-2.0-flash")
	v.SetDefault("model.api_timeout", "60s")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("model.retries", 3)
	v.SetDefault("model.retry_delay", "2s")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.action_timeout", "30s")

	// -- Automation --
	v.SetDefault("automation.retry_attempts", 3)
	v.SetDefault("automation.action_delay", "1s")
	v.SetDefault("automation.settle_delay", "500ms")
	v.SetDefault("automation.cache_snippets", true)
	v.SetDefault("automation.cache_size", 512)
	v.SetDefault("automation.screenshot_on_error", true)
	v.SetDefault("automation.screenshot_dir", "error_screenshots")
	v.SetDefault("automation.close_browser", true)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
// The API key falls back to GEMINI_API_KEY when the env binding did not
// populate it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("model.api_key", "PILOT_MODEL_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// A missing API key is a hard error: the process exit contract requires a
// non-zero exit when credentials are absent.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model API key is required; set PILOT_MODEL_API_KEY or GEMINI_API_KEY")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be a positive integer")
	}
	if c.Model.Retries <= 0 {
		return fmt.Errorf("model.retries must be a positive integer")
	}
	if c.Automation.RetryAttempts < 1 {
		return fmt.Errorf("automation.retry_attempts must be at least 1")
	}
	if c.Automation.CacheSnippets && c.Automation.CacheSize <= 0 {
		return fmt.Errorf("automation.cache_size must be positive when snippet caching is enabled")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	return nil
}
