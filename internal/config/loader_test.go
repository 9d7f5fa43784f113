// internal/config/loader_test.go
//
// Unit-tests for the layered loader.  Each test writes a throwaway
// conf/global.yaml and pins the root through Options so the real repo
// config never leaks in.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := f[ref]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func writeConf(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(body), 0o644))
	return root
}

func clearLegacy(t *testing.T) {
	t.Helper()
	for name := range legacyEnv {
		if _, ok := os.LookupEnv(name); ok {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoad_DefaultsAndPaths(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "http:\n  listen_addr: \":9090\"\n")

	cfg, err := LoadWith(Options{Root: root})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.Contact.OutboundTimeout)
	assert.Equal(t, filepath.Join(root, "data"), cfg.Site.DataDir)
	assert.Equal(t, filepath.Join(root, "themes"), cfg.Site.ThemesDir)
	assert.Equal(t, "default", cfg.Site.Theme)
	assert.Empty(t, cfg.Contact.TurnstileSecret)
	assert.Same(t, cfg, Get())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "contact:\n  webhook_url: \"https://yaml.example/hook\"\n")
	t.Setenv("SOUNDHOUSE_CONTACT__WEBHOOK_URL", "https://env.example/hook")

	cfg, err := LoadWith(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example/hook", cfg.Contact.WebhookURL)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "site:\n  title: Test\n")
	t.Setenv("TURNSTILE_SECRET_KEY", "legacy-secret")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/api/webhooks/1/abc")

	cfg, err := LoadWith(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", cfg.Contact.TurnstileSecret)
	assert.Equal(t, "https://discord.example/api/webhooks/1/abc", cfg.Contact.WebhookURL)
}

func TestLoad_ResolvesVaultReferences(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "contact:\n  turnstile_secret: \"vault:secret/soundhouse#turnstile\"\n")

	cfg, err := LoadWith(Options{
		Root:    root,
		Secrets: fakeSecrets{"secret/soundhouse#turnstile": "from-vault"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.Contact.TurnstileSecret)
}

func TestLoad_VaultFailureAborts(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "contact:\n  webhook_url: \"vault:secret/missing#hook\"\n")

	_, err := LoadWith(Options{Root: root, Secrets: fakeSecrets{}})
	require.Error(t, err)
}

func TestLoad_InvalidListenAddr(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "http:\n  listen_addr: \"not an address\"\n")

	_, err := LoadWith(Options{Root: root})
	require.Error(t, err)
}

func TestLoad_MissingYAML(t *testing.T) {
	_, err := LoadWith(Options{Root: t.TempDir()})
	require.Error(t, err)
}

func TestLoad_ReloadReusesVaultClient(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "contact:\n  turnstile_secret: \"vault:secret/soundhouse#turnstile\"\n")

	prevDial, prevCli := dialVault, vaultCli
	t.Cleanup(func() { dialVault, vaultCli = prevDial, prevCli })
	vaultCli = nil

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dials := 0
	dialVault = func(got context.Context) (SecretResolver, error) {
		dials++
		assert.Equal(t, ctx, got, "renewal loop bound to the caller's context")
		return fakeSecrets{"secret/soundhouse#turnstile": "from-vault"}, nil
	}

	for i := 0; i < 3; i++ {
		cfg, err := LoadWith(Options{Root: root, Context: ctx})
		require.NoError(t, err)
		assert.Equal(t, "from-vault", cfg.Contact.TurnstileSecret)
	}
	assert.Equal(t, 1, dials)
}

func TestLoad_TrustedProxies(t *testing.T) {
	clearLegacy(t)
	root := writeConf(t, "http:\n  trusted_proxies: [\"10.0.0.0/8\", \"192.0.2.10\"]\n")
	cfg, err := LoadWith(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.HTTP.TrustedProxies)

	root = writeConf(t, "http:\n  trusted_proxies: [\"lb.internal\"]\n")
	_, err = LoadWith(Options{Root: root})
	assert.Error(t, err)
}
