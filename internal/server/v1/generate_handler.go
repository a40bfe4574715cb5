package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/server/validator"
	"github.com/nulzo/prism-relay/pkg/api"
)

// Executor runs the failover sequence. *gateway.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, req gateway.RoutingRequest) (*gateway.Outcome, error)
	PromptMessages(prompt, systemRole string) []api.Message
}

type GenerateHandler struct {
	engine Executor
}

func NewGenerateHandler(engine Executor) *GenerateHandler {
	return &GenerateHandler{engine: engine}
}

// Generate runs a prompt through every provider until one answers.
//
// POST /v1/generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	var preferred llm.ProviderID
	if req.Provider != "" {
		id, err := llm.ParseProviderID(req.Provider)
		if err != nil {
			_ = c.Error(api.ValidationError(map[string]string{"provider": err.Error()}))
			return
		}
		preferred = id
	}

	outcome, err := h.engine.Execute(c.Request.Context(), gateway.RoutingRequest{
		Messages:          h.engine.PromptMessages(req.Prompt, req.System),
		PreferredProvider: preferred,
	})
	if err != nil {
		var exhausted *gateway.ExhaustedError
		if errors.As(err, &exhausted) {
			_ = c.Error(api.ProviderError("All providers failed to produce a response", err,
				api.WithExtension("attempts", summarize(exhausted.Attempts))))
			return
		}
		_ = c.Error(api.InternalError("Generation aborted", err))
		return
	}

	c.JSON(http.StatusOK, api.GenerateResponse{
		Text:     outcome.Text,
		Provider: string(outcome.Provider),
		Attempts: summarize(outcome.Attempts),
	})
}

func summarize(attempts []gateway.Attempt) []api.AttemptSummary {
	out := make([]api.AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		s := api.AttemptSummary{
			Provider:  string(a.Provider),
			Transport: a.Transport,
			Kind:      string(a.Kind),
			LatencyMS: a.Latency.Milliseconds(),
		}
		if a.Err != nil {
			s.Error = a.Err.Error()
		}
		out = append(out, s)
	}
	return out
}
