package gateway_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
	"github.com/nulzo/prism-relay/internal/transport"
)

type scripted struct {
	status int
	body   string
	delay  time.Duration
}

// providerFarm fakes every provider on one httptest server, one path prefix per provider.
type providerFarm struct {
	server *httptest.Server

	mu     sync.Mutex
	script map[llm.ProviderID]scripted
	hits   map[llm.ProviderID]int
	bodies map[llm.ProviderID][]byte
}

func newProviderFarm(t *testing.T) *providerFarm {
	t.Helper()
	f := &providerFarm{
		script: make(map[llm.ProviderID]scripted),
		hits:   make(map[llm.ProviderID]int),
		bodies: make(map[llm.ProviderID][]byte),
	}

	mux := http.NewServeMux()
	for _, id := range llm.Known {
		mux.HandleFunc("/"+string(id)+"/", f.handle(id))
	}
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *providerFarm) handle(id llm.ProviderID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.hits[id]++
		f.bodies[id] = body
		resp, ok := f.script[id]
		f.mu.Unlock()

		if !ok {
			resp = scripted{status: http.StatusInternalServerError, body: `{"error":"not scripted"}`}
		}
		if resp.delay > 0 {
			select {
			case <-time.After(resp.delay):
			case <-r.Context().Done():
				return
			}
		}
		if resp.status == 0 {
			resp.status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}
}

func (f *providerFarm) set(id llm.ProviderID, s scripted) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[id] = s
}

func (f *providerFarm) hitCount(id llm.ProviderID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[id]
}

func (f *providerFarm) lastBody(id llm.ProviderID) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[id]
}

// catalog points every provider at the farm, each with a credential.
func (f *providerFarm) catalog() llm.Catalog {
	c := llm.Defaults()
	for id, cfg := range c {
		if strings.Contains(cfg.Endpoint, "{model}") {
			cfg.Endpoint = f.server.URL + "/" + string(id) + "/{model}"
		} else {
			cfg.Endpoint = f.server.URL + "/" + string(id) + "/"
		}
		cfg.APIKey = "key-" + string(id)
		c[id] = cfg
	}
	return c
}

func (f *providerFarm) engine(catalog llm.Catalog, relays []transport.Strategy, opts ...gateway.Option) *gateway.Engine {
	strategies := append(relays, transport.NewDirect(llm.NewClient(f.server.Client(), nil)))
	resolver := transport.NewResolver(nil, strategies...)
	return gateway.NewEngine(nil, resolver, catalog, router.DefaultPolicy(), opts...)
}

func chatBody(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id": "chatcmpl-test",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": text}},
		},
	})
	return string(b)
}

func geminiBody(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(b)
}

func generationBody(text string) string {
	b, _ := json.Marshal([]map[string]string{{"generated_text": text}})
	return string(b)
}
