package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Vault    VaultConfig    `yaml:"vault"`
	Identity IdentityConfig `yaml:"identity"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS configuration.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"` // "1.2" or "1.3"
}

// APIConfig contains API-related configuration.
type APIConfig struct {
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
	CORS         CORSConfig      `yaml:"cors"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// VaultConfig selects and configures the credential store backend.
type VaultConfig struct {
	// Backend is "sqlite" or "memory". Memory loses all records on
	// restart and exists for development.
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
}

// IdentityConfig configures the identity provider.
type IdentityConfig struct {
	SessionTTL  time.Duration `yaml:"session_ttl"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	SignInLimit SignInLimit   `yaml:"signin_limit"`
	OAuth       OAuthConfig   `yaml:"oauth"`
}

// SignInLimit is the fixed-window cap on failed password sign-ins.
type SignInLimit struct {
	MaxFailures int           `yaml:"max_failures"`
	Window      time.Duration `yaml:"window"`
}

// OAuthConfig describes the optional upstream OAuth2 provider.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	UserInfoURL  string `yaml:"userinfo_url"`
	RedirectURL  string `yaml:"redirect_url"`
	Scopes       string `yaml:"scopes"`
}

// AuditConfig configures the security audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}

	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
	if s.TLS.Enabled {
		if s.TLS.CertFile == "" {
			return fmt.Errorf("tls cert_file is required when TLS is enabled")
		}
		if s.TLS.KeyFile == "" {
			return fmt.Errorf("tls key_file is required when TLS is enabled")
		}
		if s.TLS.MinVersion != "" && s.TLS.MinVersion != "1.2" && s.TLS.MinVersion != "1.3" {
			return fmt.Errorf("tls min_version must be either \"1.2\" or \"1.3\"")
		}
		if s.TLS.MinVersion == "" {
			s.TLS.MinVersion = "1.3"
		}
	}
	return nil
}

// Validate validates API configuration and applies defaults.
func (a *APIConfig) Validate() error {
	if a.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit requests_per_minute must not be negative")
	}
	if a.RateLimit.RequestsPerMinute == 0 {
		a.RateLimit.RequestsPerMinute = 120
	}
	if a.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit burst must not be negative")
	}
	if a.RateLimit.Burst == 0 {
		a.RateLimit.Burst = 30
	}
	if a.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative")
	}
	if a.MaxBodyBytes == 0 {
		a.MaxBodyBytes = 1 << 20
	}
	if a.CORS.Enabled && len(a.CORS.Origins) == 0 {
		return fmt.Errorf("cors origins is required when CORS is enabled")
	}
	return nil
}

// Validate validates vault configuration and applies defaults.
func (v *VaultConfig) Validate() error {
	if v.Backend == "" {
		v.Backend = "sqlite"
	}
	switch v.Backend {
	case "sqlite":
		if v.DatabasePath == "" {
			v.DatabasePath = "vaultguard.db"
		}
	case "memory":
	default:
		return fmt.Errorf("backend must be \"sqlite\" or \"memory\"")
	}
	return nil
}

// Validate validates identity configuration and applies defaults.
func (i *IdentityConfig) Validate() error {
	if i.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if i.SessionTTL == 0 {
		i.SessionTTL = 24 * time.Hour
	}
	if i.TokenTTL < 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if i.TokenTTL == 0 {
		i.TokenTTL = time.Hour
	}
	if i.SignInLimit.MaxFailures < 0 {
		return fmt.Errorf("signin_limit max_failures must not be negative")
	}
	if i.SignInLimit.MaxFailures == 0 {
		i.SignInLimit.MaxFailures = 5
	}
	if i.SignInLimit.Window < 0 {
		return fmt.Errorf("signin_limit window must be positive")
	}
	if i.SignInLimit.Window == 0 {
		i.SignInLimit.Window = 15 * time.Minute
	}
	if err := i.OAuth.Validate(); err != nil {
		return fmt.Errorf("oauth: %w", err)
	}
	return nil
}

// Validate checks the OAuth block: either fully absent or complete.
func (o *OAuthConfig) Validate() error {
	if o.ClientID == "" && o.AuthURL == "" && o.TokenURL == "" && o.UserInfoURL == "" {
		return nil
	}
	if o.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if o.AuthURL == "" || o.TokenURL == "" || o.UserInfoURL == "" {
		return fmt.Errorf("auth_url, token_url and userinfo_url are all required")
	}
	if o.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	return nil
}

// Enabled reports whether an upstream OAuth provider is configured.
func (o *OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.AuthURL != "" && o.TokenURL != "" && o.UserInfoURL != ""
}

// Validate validates audit configuration and applies defaults.
func (a *AuditConfig) Validate() error {
	if a.Enabled && a.Path == "" {
		a.Path = "audit.log"
	}
	return nil
}

// Default returns a runnable configuration for when no file is given.
func Default() *Config {
	c := &Config{
		Version: "1",
		Server: ServerConfig{
			Host:     "127.0.0.1",
			HTTPPort: 8417,
		},
	}
	// Validate fills in the remaining defaults.
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return c
}
