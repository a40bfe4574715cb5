package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the loader at an empty directory and clears every credential variable.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("CONFIG_FILE", "")
	for _, cfg := range llm.Defaults() {
		t.Setenv(cfg.CredentialKey, "")
		t.Setenv("VITE_"+cfg.CredentialKey, "")
	}
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, transport.DefaultEndpoints, cfg.Relay.Endpoints)
	assert.Empty(t, cfg.Relay.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Engine.AttemptTimeout)
	assert.Equal(t, "You are a helpful AI assistant.", cfg.Engine.DefaultSystemRole)
	assert.Equal(t, 2000, cfg.Routing.LongPromptThreshold)
	assert.Equal(t, []string{"JSON", "structure"}, cfg.Routing.StructureMarkers)
}

func TestLoadConfig_APIKeyResolution(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TEST_GROQ_KEY", "gsk-test-12345")
	t.Setenv("DEEPSEEK_API_KEY", "ds-from-env")
	t.Setenv("VITE_OPENROUTER_API_KEY", "or-from-vite")

	t.Setenv("CONFIG_FILE", writeConfig(t, dir, `
providers:
  groq:
    api_key: "ENV:TEST_GROQ_KEY"
  gemini:
    api_key: "literal-gemini"
    model: "gemini-1.5-flash"
    timeout: 5s
`))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	catalog := cfg.Catalog()
	assert.Equal(t, "gsk-test-12345", catalog[llm.Groq].APIKey)
	assert.Equal(t, "literal-gemini", catalog[llm.Gemini].APIKey)
	assert.Equal(t, "ds-from-env", catalog[llm.DeepSeek].APIKey)
	assert.Equal(t, "or-from-vite", catalog[llm.OpenRouter].APIKey)
	assert.False(t, catalog[llm.HuggingFace].HasCredential())

	assert.Equal(t, "gemini-1.5-flash", catalog[llm.Gemini].Model)
	assert.Equal(t, 5*time.Second, catalog[llm.Gemini].Timeout)
	assert.Equal(t, 15*time.Second, catalog[llm.Groq].Timeout)
	assert.Equal(t, llm.Defaults()[llm.DeepSeek].Model, catalog[llm.DeepSeek].Model)
}

func TestLoadConfig_RoutingOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CONFIG_FILE", writeConfig(t, dir, `
routing:
  long_prompt_threshold: 100
  structure_markers: ["schema"]
relay:
  base_url: "https://relay.example.com"
`))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	policy := cfg.Policy()
	assert.Equal(t, 100, policy.LongPromptThreshold)
	assert.Equal(t, llm.DeepSeek, policy.Preferred("a schema please"))
	assert.Equal(t, llm.Groq, policy.Preferred("JSON please"))
	assert.Equal(t, "https://relay.example.com", cfg.Relay.BaseURL)
}

func TestLoadConfig_RejectsUnknownProvider(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CONFIG_FILE", writeConfig(t, dir, `
providers:
  anthropic:
    api_key: "nope"
`))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}

func TestLoadConfig_RejectsBadLogFormat(t *testing.T) {
	isolate(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "absent.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}
