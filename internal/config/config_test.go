package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vgerrors "github.com/vaultguard/vaultguard/internal/errors"
)

const validYAML = `
version: "1"
server:
  host: 127.0.0.1
  http_port: 8417
  log_level: debug
api:
  rate_limit:
    requests_per_minute: 60
    burst: 10
vault:
  backend: sqlite
  database_path: /tmp/vault.db
identity:
  session_ttl: 12h
  signin_limit:
    max_failures: 3
    window: 5m
`

func TestParse(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg, err := Parse([]byte(validYAML))
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8417, cfg.Server.HTTPPort)
		assert.Equal(t, "debug", cfg.Server.LogLevel)
		assert.Equal(t, 60, cfg.API.RateLimit.RequestsPerMinute)
		assert.Equal(t, "sqlite", cfg.Vault.Backend)
		assert.Equal(t, 12*time.Hour, cfg.Identity.SessionTTL)
		assert.Equal(t, 3, cfg.Identity.SignInLimit.MaxFailures)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		cfg, err := Parse([]byte("version: \"1\"\nserver:\n  host: 0.0.0.0\n  http_port: 80\n"))
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, "json", cfg.Server.LogFormat)
		assert.Equal(t, 120, cfg.API.RateLimit.RequestsPerMinute)
		assert.Equal(t, int64(1<<20), cfg.API.MaxBodyBytes)
		assert.Equal(t, "sqlite", cfg.Vault.Backend)
		assert.Equal(t, "vaultguard.db", cfg.Vault.DatabasePath)
		assert.Equal(t, 24*time.Hour, cfg.Identity.SessionTTL)
		assert.Equal(t, time.Hour, cfg.Identity.TokenTTL)
		assert.Equal(t, 5, cfg.Identity.SignInLimit.MaxFailures)
		assert.Equal(t, 15*time.Minute, cfg.Identity.SignInLimit.Window)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		var parseErr *vgerrors.ErrConfigParse
		_, err := Parse([]byte("version: [unclosed"))
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name string
			yaml string
		}{
			{"missing version", "server:\n  host: x\n  http_port: 1\n"},
			{"missing host", "version: \"1\"\nserver:\n  http_port: 1\n"},
			{"port out of range", "version: \"1\"\nserver:\n  host: x\n  http_port: 70000\n"},
			{"unknown vault backend", "version: \"1\"\nserver:\n  host: x\n  http_port: 1\nvault:\n  backend: redis\n"},
			{"tls without cert", "version: \"1\"\nserver:\n  host: x\n  http_port: 1\n  tls:\n    enabled: true\n"},
			{"partial oauth", "version: \"1\"\nserver:\n  host: x\n  http_port: 1\nidentity:\n  oauth:\n    client_id: abc\n"},
			{"cors without origins", "version: \"1\"\nserver:\n  host: x\n  http_port: 1\napi:\n  cors:\n    enabled: true\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var validationErr *vgerrors.ErrConfigValidation
				_, err := Parse([]byte(tt.yaml))
				require.ErrorAs(t, err, &validationErr)
			})
		}
	})
}

func TestOAuthConfig(t *testing.T) {
	complete := OAuthConfig{
		ClientID:    "id",
		AuthURL:     "https://idp/auth",
		TokenURL:    "https://idp/token",
		UserInfoURL: "https://idp/userinfo",
		RedirectURL: "https://app/callback",
	}

	assert.True(t, complete.Enabled())
	assert.NoError(t, complete.Validate())

	empty := OAuthConfig{}
	assert.False(t, empty.Enabled())
	assert.NoError(t, empty.Validate())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Vault.Backend)
	assert.Equal(t, 8417, cfg.Server.HTTPPort)
}

func TestLoader(t *testing.T) {
	writeConfig := func(t *testing.T, dir, content string) string {
		t.Helper()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("load and get", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), validYAML)
		loader := NewLoader(path, nil)

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, cfg, loader.Get())
	})

	t.Run("missing file", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), nil)

		var notFound *vgerrors.ErrConfigNotFound
		_, err := loader.Load()
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("environment substitution", func(t *testing.T) {
		t.Setenv("TEST_VAULT_DB", "/data/test.db")
		path := writeConfig(t, t.TempDir(), `
version: "1"
server:
  host: 127.0.0.1
  http_port: 8417
vault:
  database_path: ${TEST_VAULT_DB}
`)

		cfg, err := NewLoader(path, nil).Load()
		require.NoError(t, err)
		assert.Equal(t, "/data/test.db", cfg.Vault.DatabasePath)
	})

	t.Run("reload fires the change callback", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), validYAML)
		loader := NewLoader(path, nil)
		_, err := loader.Load()
		require.NoError(t, err)

		var got *Config
		loader.SetOnChange(func(c *Config) { got = c })

		require.NoError(t, os.WriteFile(path, []byte(validYAML+"audit:\n  enabled: true\n"), 0644))
		_, err = loader.Reload()
		require.NoError(t, err)

		require.NotNil(t, got)
		assert.True(t, got.Audit.Enabled)
		assert.Equal(t, "audit.log", got.Audit.Path)
	})

	t.Run("watcher picks up rewrites", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), validYAML)
		loader := NewLoader(path, nil)
		_, err := loader.Load()
		require.NoError(t, err)

		changed := make(chan *Config, 1)
		loader.SetOnChange(func(c *Config) {
			select {
			case changed <- c:
			default:
			}
		})

		require.NoError(t, loader.StartWatcher())
		defer loader.StopWatcher()

		require.NoError(t, os.WriteFile(path, []byte(validYAML+"audit:\n  enabled: true\n"), 0644))

		select {
		case cfg := <-changed:
			assert.True(t, cfg.Audit.Enabled)
		case <-time.After(3 * time.Second):
			t.Fatal("watcher never fired")
		}
	})
}
