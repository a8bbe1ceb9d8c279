// Package config provides configuration loading for the authkit client.
// Values come from an optional tripmate.yaml file with TRIPMATE_* environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Platform selects the persistence policy for the session.
type Platform string

const (
	// PlatformNative persists the refresh credential in the encrypted file
	// vault; user and flag go to general storage.
	PlatformNative Platform = "native"
	// PlatformWeb never persists the refresh credential client-side; the
	// server manages it via an HTTP-only cookie on a credentialed transport.
	PlatformWeb Platform = "web"
)

// Config holds the client configuration.
type Config struct {
	// APIBaseURL is the backend auth API base URL.
	APIBaseURL string `mapstructure:"api_base_url"`
	// OAuthClientID is the OAuth client identifier for the provider flow.
	OAuthClientID string `mapstructure:"oauth_client_id"`
	// OAuthAuthURL is the provider's authorization endpoint.
	OAuthAuthURL string `mapstructure:"oauth_auth_url"`
	// RedirectAddr is the loopback address for the OAuth redirect listener.
	RedirectAddr string `mapstructure:"redirect_addr"`
	// DataDir holds the general storage and vault files.
	DataDir string `mapstructure:"data_dir"`
	// Platform selects the persistence policy: native or web.
	Platform Platform `mapstructure:"platform"`
}

// Load reads configuration from the given file (optional; searched in
// standard locations when empty), applies environment overrides, and
// validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tripmate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tripmate"))
		}
	}

	// Environment variable support: TRIPMATE_API_BASE_URL overrides
	// api_base_url, and so on.
	v.SetEnvPrefix("TRIPMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"api_base_url",
		"oauth_client_id",
		"oauth_auth_url",
		"redirect_addr",
		"data_dir",
		"platform",
	} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("oauth_auth_url", "https://accounts.google.com/o/oauth2/auth")
	v.SetDefault("redirect_addr", "127.0.0.1:0")
	v.SetDefault("platform", string(PlatformNative))
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("data_dir", filepath.Join(home, ".tripmate"))
	} else {
		v.SetDefault("data_dir", ".tripmate")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required (set TRIPMATE_API_BASE_URL)")
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api_base_url %q is not a valid URL", c.APIBaseURL)
	}
	switch c.Platform {
	case PlatformNative, PlatformWeb:
	default:
		return fmt.Errorf("platform must be %q or %q, got %q", PlatformNative, PlatformWeb, c.Platform)
	}
	return nil
}

// IsWeb reports whether the web (cookie) persistence policy is selected.
func (c *Config) IsWeb() bool {
	return c.Platform == PlatformWeb
}

// StoragePath returns the general storage file location.
func (c *Config) StoragePath() string {
	return filepath.Join(c.DataDir, "storage.db")
}

// VaultPath returns the vault file location.
func (c *Config) VaultPath() string {
	return filepath.Join(c.DataDir, "vault.db")
}
