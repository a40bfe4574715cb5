package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/prism-relay/internal/httpclient"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientComplete_ChatCompletions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-test", body["model"])

		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello there!"},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer server.Close()

	cfg := llm.Defaults()[llm.Groq]
	cfg.Endpoint = server.URL + "/openai/v1/chat/completions"
	cfg.Model = "llama-test"
	cfg.APIKey = "test-key"

	client := llm.NewClient(server.Client(), nil)
	text, err := client.Complete(context.Background(), cfg, []api.Message{api.UserMessage("Hi")})

	require.NoError(t, err)
	assert.Equal(t, "Hello there!", text)
}

func TestClientComplete_SinglePromptUsesQueryKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"from gemini"}]}}]}`))
	}))
	defer server.Close()

	cfg := llm.Defaults()[llm.Gemini]
	cfg.Endpoint = server.URL + "/v1beta/models/{model}:generateContent"
	cfg.Model = "gemini-test"
	cfg.APIKey = "g-key"

	text, err := llm.NewClient(server.Client(), nil).Complete(context.Background(), cfg, []api.Message{api.UserMessage("Hi")})
	require.NoError(t, err)
	assert.Equal(t, "from gemini", text)
}

func TestClientCall_MissingCredential(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := llm.Defaults()[llm.DeepSeek]
	cfg.Endpoint = server.URL

	_, err := llm.NewClient(server.Client(), nil).Call(context.Background(), cfg, []api.Message{api.UserMessage("Hi")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrMissingCredential))
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
	assert.False(t, called, "no request should be sent without a credential")
}

func TestClientCall_ProviderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	cfg := llm.Defaults()[llm.OpenRouter]
	cfg.Endpoint = server.URL
	cfg.APIKey = "bad"

	_, err := llm.NewClient(server.Client(), nil).Complete(context.Background(), cfg, []api.Message{api.UserMessage("Hi")})

	var httpErr *httpclient.ProviderHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, string(httpErr.Body), "invalid api key")
}

func TestParseProviderID(t *testing.T) {
	id, err := llm.ParseProviderID(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, llm.Gemini, id)

	_, err = llm.ParseProviderID("anthropic")
	assert.True(t, errors.Is(err, llm.ErrUnknownProvider))
}

func TestDefaults_CoverEveryKnownProvider(t *testing.T) {
	defaults := llm.Defaults()
	assert.Len(t, defaults, len(llm.Known))
	for _, id := range llm.Known {
		cfg, err := defaults.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, cfg.ID)
		assert.NotEmpty(t, cfg.Model)
		assert.NotEmpty(t, cfg.CredentialKey)
		assert.Positive(t, cfg.Timeout)
	}
}
