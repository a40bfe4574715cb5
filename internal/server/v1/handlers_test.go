package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/httpclient"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
	"github.com/nulzo/prism-relay/internal/server/middleware"
	v1 "github.com/nulzo/prism-relay/internal/server/v1"
	"github.com/nulzo/prism-relay/internal/server/validator"
	"github.com/nulzo/prism-relay/internal/store/model"
	"github.com/nulzo/prism-relay/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, cfg llm.ProviderConfig, messages []api.Message) (string, error) {
	args := m.Called(ctx, cfg, messages)
	return args.String(0), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRelay(attempt gateway.Attempt) {
	m.Called(attempt)
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, req gateway.RoutingRequest) (*gateway.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

func (m *MockExecutor) PromptMessages(prompt, systemRole string) []api.Message {
	args := m.Called(prompt, systemRole)
	return args.Get(0).([]api.Message)
}

type MockAnalytics struct {
	mock.Mock
}

func (m *MockAnalytics) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DailyStats), args.Error(1)
}

func (m *MockAnalytics) GetRecent(ctx context.Context, providerID string, limit int) ([]model.RequestLog, error) {
	args := m.Called(ctx, providerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RequestLog), args.Error(1)
}

func testCatalog() llm.Catalog {
	catalog := llm.Defaults()
	for id, cfg := range catalog {
		if id != llm.HuggingFace {
			cfg.APIKey = "sk-" + string(id)
		}
		catalog[id] = cfg
	}
	return catalog
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.InitValidator()
	r := gin.New()
	r.Use(middleware.ErrorHandler(zap.NewNop()))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func relayRouter(completer v1.Completer, recorder v1.RelayRecorder) *gin.Engine {
	r := newEngine()
	h := v1.NewRelayHandler(completer, testCatalog(), recorder, zap.NewNop())
	r.POST("/api/generate", h.Generate)
	return r
}

func TestRelay_Success(t *testing.T) {
	completer := new(MockCompleter)
	recorder := new(MockRecorder)

	completer.On("Complete", mock.Anything, mock.MatchedBy(func(cfg llm.ProviderConfig) bool {
		return cfg.ID == llm.OpenRouter && cfg.Model == "mistral-7b" && cfg.APIKey == "sk-openrouter"
	}), []api.Message{api.UserMessage("Hello")}).Return("Hi there!", nil)
	recorder.On("RecordRelay", mock.MatchedBy(func(a gateway.Attempt) bool {
		return a.Provider == llm.OpenRouter && a.Transport == "relay" && a.Kind == gateway.KindNone && a.Err == nil
	})).Return()

	w := do(relayRouter(completer, recorder), http.MethodPost, "/api/generate",
		`{"provider":"openrouter","model":"mistral-7b","messages":[{"role":"user","content":"Hello"}]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "relay-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "mistral-7b", resp.Model)
	assert.Equal(t, "openrouter", resp.Provider)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, api.Assistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "Hi there!", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)

	completer.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestRelay_UnknownOrEmptyProviderUsesGroq(t *testing.T) {
	for _, provider := range []string{"", "mystery"} {
		t.Run(fmt.Sprintf("provider=%q", provider), func(t *testing.T) {
			completer := new(MockCompleter)
			completer.On("Complete", mock.Anything, mock.MatchedBy(func(cfg llm.ProviderConfig) bool {
				return cfg.ID == llm.Groq && cfg.Model == "llama-3.3-70b-versatile"
			}), mock.Anything).Return("ok", nil)

			body := fmt.Sprintf(`{"provider":%q,"messages":[{"role":"user","content":"Hi"}]}`, provider)
			w := do(relayRouter(completer, nil), http.MethodPost, "/api/generate", body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"provider":"groq"`)
			completer.AssertExpectations(t)
		})
	}
}

func TestRelay_InvalidBody(t *testing.T) {
	completer := new(MockCompleter)

	cases := map[string]string{
		"empty body":   ``,
		"no messages":  `{"provider":"groq","messages":[]}`,
		"bad role":     `{"provider":"groq","messages":[{"role":"robot","content":"x"}]}`,
		"invalid json": `{"provider": groq}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(relayRouter(completer, nil), http.MethodPost, "/api/generate", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp api.RelayError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "invalid relay request", resp.Error)
			assert.NotEmpty(t, resp.Details)
		})
	}
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_ProviderFailure(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		details string
	}{
		{
			name:    "upstream status",
			err:     &httpclient.ProviderHTTPError{StatusCode: 401, Body: []byte("invalid key"), URL: "https://api.groq.com"},
			details: "provider_http",
		},
		{
			name:    "missing credential",
			err:     fmt.Errorf("groq: %w", llm.ErrMissingCredential),
			details: "missing_credential",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			completer := new(MockCompleter)
			recorder := new(MockRecorder)
			completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", tc.err)
			recorder.On("RecordRelay", mock.MatchedBy(func(a gateway.Attempt) bool {
				return string(a.Kind) == tc.details && a.Err != nil
			})).Return()

			w := do(relayRouter(completer, recorder), http.MethodPost, "/api/generate",
				`{"provider":"groq","messages":[{"role":"user","content":"Hi"}]}`)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			var resp api.RelayError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.err.Error(), resp.Error)
			assert.Equal(t, tc.details, resp.Details)
			recorder.AssertExpectations(t)
		})
	}
}

func TestRelay_MethodNotAllowed(t *testing.T) {
	r := newEngine()
	r.HandleMethodNotAllowed = true
	r.NoMethod(v1.MethodNotAllowed)
	r.POST("/api/generate", v1.NewRelayHandler(new(MockCompleter), testCatalog(), nil, zap.NewNop()).Generate)

	w := do(r, http.MethodGet, "/api/generate", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method Not Allowed", w.Body.String())
}

func generateRouter(engine v1.Executor) *gin.Engine {
	r := newEngine()
	r.POST("/v1/generate", v1.NewGenerateHandler(engine).Generate)
	return r
}

func TestGenerate_Success(t *testing.T) {
	engine := new(MockExecutor)
	msgs := []api.Message{api.SystemMessage("be brief"), api.UserMessage("Hello")}

	engine.On("PromptMessages", "Hello", "be brief").Return(msgs)
	engine.On("Execute", mock.Anything, gateway.RoutingRequest{Messages: msgs, PreferredProvider: llm.Gemini}).
		Return(&gateway.Outcome{
			Text:     "Hi there!",
			Provider: llm.Gemini,
			Attempts: []gateway.Attempt{
				{Provider: llm.Gemini, Transport: "direct", Latency: 120 * time.Millisecond},
			},
		}, nil)

	w := do(generateRouter(engine), http.MethodPost, "/v1/generate",
		`{"prompt":"Hello","system":"be brief","provider":"gemini"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hi there!", resp.Text)
	assert.Equal(t, "gemini", resp.Provider)
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, "direct", resp.Attempts[0].Transport)
	assert.Equal(t, int64(120), resp.Attempts[0].LatencyMS)
	assert.Empty(t, resp.Attempts[0].Error)
	engine.AssertExpectations(t)
}

func TestGenerate_Exhausted(t *testing.T) {
	engine := new(MockExecutor)
	engine.On("PromptMessages", "Hello", "").Return([]api.Message{api.UserMessage("Hello")})
	engine.On("Execute", mock.Anything, mock.Anything).Return(nil, &gateway.ExhaustedError{
		Attempts: []gateway.Attempt{
			{Provider: llm.Groq, Transport: "direct", Kind: gateway.KindProviderHTTP, Err: &httpclient.ProviderHTTPError{StatusCode: 500}},
			{Provider: llm.Gemini, Kind: gateway.KindMissingCredential, Err: llm.ErrMissingCredential},
		},
	})

	w := do(generateRouter(engine), http.MethodPost, "/v1/generate", `{"prompt":"Hello"}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp struct {
		Title    string               `json:"title"`
		Instance string               `json:"instance"`
		Attempts []api.AttemptSummary `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Upstream Provider Error", resp.Title)
	assert.Equal(t, "/v1/generate", resp.Instance)
	require.Len(t, resp.Attempts, 2)
	assert.Equal(t, "provider_http", resp.Attempts[0].Kind)
	assert.Equal(t, "missing_credential", resp.Attempts[1].Kind)
	assert.NotEmpty(t, resp.Attempts[1].Error)
}

func TestGenerate_Canceled(t *testing.T) {
	engine := new(MockExecutor)
	engine.On("PromptMessages", "Hello", "").Return([]api.Message{api.UserMessage("Hello")})
	engine.On("Execute", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	w := do(generateRouter(engine), http.MethodPost, "/v1/generate", `{"prompt":"Hello"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGenerate_Validation(t *testing.T) {
	engine := new(MockExecutor)

	w := do(generateRouter(engine), http.MethodPost, "/v1/generate", `{"system":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "prompt")

	w = do(generateRouter(engine), http.MethodPost, "/v1/generate", `{"prompt":"x","provider":"mystery"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "provider")

	engine.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestConfig_HidesCredentials(t *testing.T) {
	r := newEngine()
	r.GET("/v1/providers", v1.NewConfigHandler(testCatalog(), router.DefaultPolicy()).Get)

	w := do(r, http.MethodGet, "/v1/providers", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-")

	var resp struct {
		Providers []struct {
			ID         string `json:"id"`
			Protocol   string `json:"protocol"`
			Configured bool   `json:"configured"`
			TimeoutMS  int64  `json:"timeout_ms"`
		} `json:"providers"`
		Routing struct {
			Fast  string   `json:"fast"`
			Order []string `json:"order"`
		} `json:"routing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, len(llm.Known))
	assert.Equal(t, "groq", resp.Providers[0].ID)
	assert.True(t, resp.Providers[0].Configured)
	assert.Equal(t, int64(15000), resp.Providers[0].TimeoutMS)
	assert.Equal(t, "huggingface", resp.Providers[4].ID)
	assert.False(t, resp.Providers[4].Configured)
	assert.Equal(t, "groq", resp.Routing.Fast)
	assert.Equal(t, []string{"groq", "gemini", "openrouter", "deepseek", "huggingface"}, resp.Routing.Order)
}

func TestAnalytics_Usage(t *testing.T) {
	service := new(MockAnalytics)
	service.On("GetUsageOverview", mock.Anything, 14).Return([]model.DailyStats{
		{Date: "2026-10-15", ProviderID: "groq", TotalRequests: 4, Failures: 1, AverageLatency: 210.5},
	}, nil)

	r := newEngine()
	h := v1.NewAnalyticsHandler(service)
	r.GET("/v1/analytics/usage", h.GetUsage)

	w := do(r, http.MethodGet, "/v1/analytics/usage?days=14", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"object":"list"`)
	assert.Contains(t, w.Body.String(), "2026-10-15")

	w = do(r, http.MethodGet, "/v1/analytics/usage?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	service.AssertExpectations(t)
}

func TestAnalytics_Recent(t *testing.T) {
	service := new(MockAnalytics)
	service.On("GetRecent", mock.Anything, "groq", 50).Return([]model.RequestLog{{ID: "a", ProviderID: "groq"}}, nil)
	service.On("GetRecent", mock.Anything, "", 5).Return(nil, fmt.Errorf("db closed"))

	r := newEngine()
	h := v1.NewAnalyticsHandler(service)
	r.GET("/v1/analytics/requests", h.GetRecent)

	w := do(r, http.MethodGet, "/v1/analytics/requests?provider=groq", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/v1/analytics/requests?limit=5", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db closed")

	service.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	r := newEngine()
	r.GET("/health", v1.NewHealthHandler("v1.2.3").Health)

	w := do(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"v1.2.3"}`, w.Body.String())
}
