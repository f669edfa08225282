package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProviderConfigs_EmptyPath(t *testing.T) {
	configs, err := LoadProviderConfigs("")
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestLoadProviderConfigs_ParsesProviders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oidc.toml")

	const body = `
[providers.google]
issuer_url = "https://accounts.google.com"
client_id = "abc123"
client_secret = "secret"

[providers.okta]
issuer_url = "https://example.okta.com"
client_id = "def456"
client_secret = "other-secret"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	configs, err := LoadProviderConfigs(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	google, ok := configs["google"]
	require.True(t, ok)
	assert.Equal(t, "https://accounts.google.com", google.IssuerURL)
	assert.Equal(t, "abc123", google.ClientID)
	assert.Equal(t, "secret", google.ClientSecret)

	okta, ok := configs["okta"]
	require.True(t, ok)
	assert.Equal(t, "def456", okta.ClientID)
}

func TestLoadProviderConfigs_MissingFile(t *testing.T) {
	_, err := LoadProviderConfigs(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.Error(t, err)
}
