// Package config provides the immutable process configuration for the
// pipeline. It is constructed once at startup (environment variables plus an
// optional YAML file) and passed by reference into component constructors;
// no package reads the environment after Load returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML either as a Go
// duration string ("5s", "250ms") or as a bare integer number of
// milliseconds, matching the *_MS environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all tunables of the invocation pipeline.
type Config struct {
	// Server settings.
	HTTPPort int `yaml:"http_port"`

	// Database DSN for the SQLite memory store. Empty selects the
	// in-memory store.
	DatabaseURL string `yaml:"database_url"`

	// Context assembly.
	MaxContextTurns int `yaml:"max_context_turns"`
	MaxContextChars int `yaml:"max_context_chars"`

	// Dispatcher bounds.
	MaxConcurrentInvocations int      `yaml:"max_concurrent_invocations"`
	LockWaitTimeout          Duration `yaml:"lock_wait_timeout"`
	InvocationTimeout        Duration `yaml:"invocation_timeout"`
	MaxRetries               int      `yaml:"max_retries"`
	RetryBackoffBase         Duration `yaml:"retry_backoff_base"`

	// Guardrail policy. GuardrailFailOpen must be an explicit operator
	// choice; the default fails closed.
	GuardrailFailOpen bool   `yaml:"guardrail_fail_open"`
	GuardrailPolicy   string `yaml:"guardrail_policy"` // path to a rego policy file, empty selects the keyword evaluator

	// Agent invoker selection.
	AgentProvider string `yaml:"agent_provider"` // anthropic, openai or mock
	AgentModel    string `yaml:"agent_model"`    // empty selects the provider default
	SystemPrompt  string `yaml:"system_prompt"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or text
}

// Load builds a Config from environment variables with production defaults.
func Load() *Config {
	return &Config{
		HTTPPort:                 getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:              getEnv("DATABASE_URL", "file:agentrun.db?cache=shared&mode=rwc"),
		MaxContextTurns:          getEnvInt("MAX_CONTEXT_TURNS", 10),
		MaxContextChars:          getEnvInt("MAX_CONTEXT_CHARS", 10000),
		MaxConcurrentInvocations: getEnvInt("MAX_CONCURRENT_INVOCATIONS", 32),
		LockWaitTimeout:          getEnvDuration("LOCK_WAIT_TIMEOUT_MS", 5000),
		InvocationTimeout:        getEnvDuration("INVOCATION_TIMEOUT_MS", 120000),
		MaxRetries:               getEnvInt("MAX_RETRIES", 2),
		RetryBackoffBase:         getEnvDuration("RETRY_BACKOFF_BASE_MS", 200),
		GuardrailFailOpen:        getEnvBool("GUARDRAIL_FAIL_OPEN", false),
		GuardrailPolicy:          getEnv("GUARDRAIL_POLICY", ""),
		AgentProvider:            getEnv("AGENT_PROVIDER", "anthropic"),
		AgentModel:               getEnv("AGENT_MODEL", ""),
		SystemPrompt:             getEnv("SYSTEM_PROMPT", ""),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "json"),
	}
}

// LoadFile overlays values from a YAML file onto the environment-derived
// config. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.MaxConcurrentInvocations <= 0 {
		return fmt.Errorf("max_concurrent_invocations must be positive, got %d", c.MaxConcurrentInvocations)
	}
	if c.MaxContextTurns < 0 {
		return fmt.Errorf("max_context_turns must not be negative, got %d", c.MaxContextTurns)
	}
	if c.InvocationTimeout <= 0 {
		return fmt.Errorf("invocation_timeout must be positive, got %s", c.InvocationTimeout)
	}
	if c.LockWaitTimeout <= 0 {
		return fmt.Errorf("lock_wait_timeout must be positive, got %s", c.LockWaitTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	switch c.AgentProvider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("agent_provider must be anthropic, openai or mock, got %q", c.AgentProvider)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMillis int) Duration {
	return Duration(time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond)
}
