package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpostr-proxy/core/security"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadCredentials(t *testing.T) {
	pool, err := LoadCredentials(envMap(map[string]string{
		"OPENROUTER_KEYS": "sk-or-a, sk-or-b,,sk-or-c",
		"OPENROUTER_KEY":  "sk-or-b",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-or-a", "sk-or-b", "sk-or-c"}, pool.Keys())
}

func TestLoadCredentials_SingleKeyFallback(t *testing.T) {
	pool, err := LoadCredentials(envMap(map[string]string{
		"OPENROUTER_KEY": "sk-or-legacy",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-or-legacy"}, pool.Keys())
}

func TestLoadCredentials_Empty(t *testing.T) {
	pool, err := LoadCredentials(envMap(map[string]string{}))
	require.NoError(t, err)
	assert.True(t, pool.Empty())
}

func TestLoadCredentials_Encrypted(t *testing.T) {
	sp, err := security.NewAESSecretProvider("deploy-secret")
	require.NoError(t, err)
	sealed, err := sp.Encrypt("sk-or-secret")
	require.NoError(t, err)

	pool, err := LoadCredentials(envMap(map[string]string{
		"OPENROUTER_KEYS":   sealed + ",sk-or-plain",
		"CREDENTIAL_SECRET": "deploy-secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-or-secret", "sk-or-plain"}, pool.Keys())

	_, err = LoadCredentials(envMap(map[string]string{
		"OPENROUTER_KEYS": sealed,
	}))
	assert.Error(t, err, "encrypted value without secret")

	_, err = LoadCredentials(envMap(map[string]string{
		"OPENROUTER_KEYS":   sealed,
		"CREDENTIAL_SECRET": "wrong-secret",
	}))
	assert.Error(t, err)
}

func TestLoad_ProfileDefaults(t *testing.T) {
	t.Setenv("PROXY_PROFILE", "worker")
	t.Setenv("OPENROUTER_KEY", "sk-or-worker")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProfileWorker, cfg.Profile)
	assert.Equal(t, "google/gemini-2.0-flash-exp:free", cfg.Upstream.DefaultModel)
	assert.Equal(t, "xPostr Cloudflare", cfg.Upstream.Title)
	assert.Equal(t, "GET, HEAD, POST, OPTIONS", cfg.Server.AllowMethods)
	assert.Equal(t, 1, cfg.Credentials.Len())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
upstream:
  default_model: meta-llama/llama-3-8b-instruct:free
dispatch:
  attempt_timeout: 5s
  fail_fast_invalid_request: true
rate_limit:
  rps: 2
`), 0644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9200")
	t.Setenv("PROXY_PROFILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProfileVercel, cfg.Profile)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "meta-llama/llama-3-8b-instruct:free", cfg.Upstream.DefaultModel)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.AttemptTimeout)
	assert.True(t, cfg.Dispatch.FailFastOnInvalidRequest)
	assert.Equal(t, 2.0, cfg.Limit.RPS)
	// 文件里没写的字段保留默认值
	assert.Equal(t, "xPostr", cfg.Upstream.Title)
	assert.Equal(t, 55*time.Second, cfg.Dispatch.Timeout)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLookupProfile_Unknown(t *testing.T) {
	assert.Equal(t, ProfileVercel, LookupProfile("nope").Name)
}
