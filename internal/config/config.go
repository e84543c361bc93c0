// Package config loads application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables
//  2. Config file (~/.mentor/config.yaml)
//  3. Defaults
//
// Secrets (GitHub token, Serper key, HMAC secret) are masked in String()
// and MarshalJSON(). Credentials left empty here can still be supplied
// per session through the web UI; Load does not require them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModel indicates the model is not one of the supported identifiers.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidHMACSecret indicates the HMAC secret is too short.
	ErrInvalidHMACSecret = errors.New("invalid HMAC secret")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// MinHMACSecretLength is the minimum byte length accepted for the CSRF
// signing secret.
const MinHMACSecretLength = 32

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Agent credentials and model selection. Token is a GitHub personal
	// access token for the GitHub Models inference endpoint.
	Token string `mapstructure:"token" json:"token"` // SENSITIVE: masked in MarshalJSON
	Model string `mapstructure:"model" json:"model"`

	// SerperAPIKey enables the web_search tool when set.
	SerperAPIKey string `mapstructure:"serper_api_key" json:"serper_api_key"` // SENSITIVE: masked in MarshalJSON

	// Agent loop bounds.
	MaxTurns int `mapstructure:"max_turns" json:"max_turns"`

	// Server configuration.
	Addr       string `mapstructure:"addr" json:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)

	// HMACSecret signs CSRF tokens. When empty the serve command
	// generates an ephemeral secret, invalidating tokens on restart.
	HMACSecret string `mapstructure:"hmac_secret" json:"hmac_secret"` // SENSITIVE: masked in MarshalJSON
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".mentor")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("model", DefaultModel)
	viper.SetDefault("max_turns", 5)
	viper.SetDefault("addr", "localhost:8080")
	viper.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly. Hardcoded
// keys cannot fail to bind; a bind error here is a bug, hence the panic.
func bindEnvVariables() {
	mustBind := func(key string, envVars ...string) {
		args := append([]string{key}, envVars...)
		if err := viper.BindEnv(args...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	// GITHUB_TOKEN is the conventional name; MENTOR_TOKEN wins when both are set.
	mustBind("token", "MENTOR_TOKEN", "GITHUB_TOKEN")
	mustBind("model", "MENTOR_MODEL")
	mustBind("serper_api_key", "SERPER_API_KEY")
	mustBind("hmac_secret", "HMAC_SECRET")
	mustBind("addr", "MENTOR_ADDR")
	mustBind("trust_proxy", "MENTOR_TRUST_PROXY")
}

// Validate checks field values. Credentials are intentionally not
// required: the web UI collects them per session.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Model != "" && !ValidModel(c.Model) {
		return fmt.Errorf("%w: %q (supported: %v)", ErrInvalidModel, c.Model, Models())
	}
	if c.HMACSecret != "" && len(c.HMACSecret) < MinHMACSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidHMACSecret, MinHMACSecretLength, len(c.HMACSecret))
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddr)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be at least 1, got %d", c.MaxTurns)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 bytes or
// fewer are fully masked; longer ones keep the first and last 2 bytes
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit masking of
// Token, SerperAPIKey and HMACSecret.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Token = maskSecret(a.Token)
	a.SerperAPIKey = maskSecret(a.SerperAPIKey)
	a.HMACSecret = maskSecret(a.HMACSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
