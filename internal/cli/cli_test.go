package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultguard/vaultguard/internal/config"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, RootCmd)
	assert.Equal(t, "vaultguard", RootCmd.Use)
	assert.Contains(t, RootCmd.Long, "VaultGuard")
}

func TestVersionCommand(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
}

func TestGetGlobalFlags(t *testing.T) {
	InitCLI()

	flags := GetGlobalFlags()
	assert.Equal(t, "config.yaml", flags.Config)
	assert.Equal(t, "./data/vaultguard.db", flags.DBPath)
	assert.False(t, flags.Verbose)
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}

func TestCommandsRegistered(t *testing.T) {
	InitCLI()

	names := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"serve", "generate", "strength", "vault", "version"} {
		assert.True(t, names[want], "command %q must be registered", want)
	}
}

func TestVaultCommandsRequireServer(t *testing.T) {
	InitCLI()

	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	globalFlags.Server = ""
	globalFlags.Token = ""
	_, err := remoteVault()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--server")

	globalFlags.Server = "http://localhost:8417"
	_, err = remoteVault()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token")

	globalFlags.Token = "session-token"
	remote, err := remoteVault()
	require.NoError(t, err)
	assert.NotNil(t, remote)
}

func TestValidateTLSConfigRejectsMissingFiles(t *testing.T) {
	err := validateTLSConfig(config.TLSConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate")

	err = validateTLSConfig(config.TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"})
	require.Error(t, err)
}
