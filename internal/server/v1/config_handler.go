package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
)

type providerView struct {
	ID         string `json:"id"`
	Protocol   string `json:"protocol"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
	TimeoutMS  int64  `json:"timeout_ms"`
}

type routingView struct {
	Fast                string   `json:"fast"`
	LargeContext        string   `json:"large_context"`
	Structured          string   `json:"structured"`
	LongPromptThreshold int      `json:"long_prompt_threshold"`
	StructureMarkers    []string `json:"structure_markers"`
	Order               []string `json:"order"`
}

// ConfigHandler exposes the provider catalog and routing policy. Credentials are
// reported only as configured or not.
type ConfigHandler struct {
	catalog llm.Catalog
	policy  router.Policy
}

func NewConfigHandler(catalog llm.Catalog, policy router.Policy) *ConfigHandler {
	return &ConfigHandler{catalog: catalog, policy: policy}
}

// Get returns the effective provider configuration.
//
// GET /v1/providers
func (h *ConfigHandler) Get(c *gin.Context) {
	providers := make([]providerView, 0, len(llm.Known))
	for _, id := range llm.Known {
		cfg, err := h.catalog.Get(id)
		if err != nil {
			continue
		}
		providers = append(providers, providerView{
			ID:         string(id),
			Protocol:   string(cfg.Protocol),
			Model:      cfg.Model,
			Configured: cfg.HasCredential(),
			TimeoutMS:  cfg.Timeout.Milliseconds(),
		})
	}

	order := make([]string, 0, len(h.policy.Order))
	for _, id := range h.policy.Order {
		order = append(order, string(id))
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"routing": routingView{
			Fast:                string(h.policy.Fast),
			LargeContext:        string(h.policy.LargeContext),
			Structured:          string(h.policy.Structured),
			LongPromptThreshold: h.policy.LongPromptThreshold,
			StructureMarkers:    h.policy.StructureMarkers,
			Order:               order,
		},
	})
}
