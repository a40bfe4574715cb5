package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nulzo/prism-relay/internal/gateway"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/server/validator"
	"github.com/nulzo/prism-relay/pkg/api"
	"go.uber.org/zap"
)

// Completer calls a provider directly. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, cfg llm.ProviderConfig, messages []api.Message) (string, error)
}

// RelayRecorder receives one entry per relayed call.
type RelayRecorder interface {
	RecordRelay(attempt gateway.Attempt)
}

// RelayHandler serves the relay contract: it calls the requested provider with the
// credentials held by this server and answers in the normalized chat shape.
type RelayHandler struct {
	completer Completer
	catalog   llm.Catalog
	recorder  RelayRecorder
	logger    *zap.Logger
}

func NewRelayHandler(completer Completer, catalog llm.Catalog, recorder RelayRecorder, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		completer: completer,
		catalog:   catalog,
		recorder:  recorder,
		logger:    logger,
	}
}

// Generate relays one provider call.
//
// POST /.netlify/functions/generate
// POST /api/generate
func (h *RelayHandler) Generate(c *gin.Context) {
	var req api.RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.RelayError{
			Error:   "invalid relay request",
			Details: validator.Summary(validator.ParseValidationError(err)),
		})
		return
	}

	id, err := llm.ParseProviderID(req.Provider)
	if err != nil {
		if req.Provider != "" {
			h.logger.Warn("Unknown relay provider, using default", zap.String("provider", req.Provider))
		}
		id = llm.Groq
	}

	cfg, err := h.catalog.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.RelayError{Error: err.Error()})
		return
	}
	cfg = cfg.WithModel(req.Model)

	h.logger.Info("Processing relay request",
		zap.String("provider", string(id)),
		zap.String("model", cfg.Model),
	)

	ctx := c.Request.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := h.completer.Complete(ctx, cfg, req.Messages)
	attempt := gateway.Attempt{
		Provider:  id,
		Model:     cfg.Model,
		Transport: "relay",
		Err:       err,
		Kind:      gateway.Classify(err),
		Latency:   time.Since(start),
	}
	if h.recorder != nil {
		h.recorder.RecordRelay(attempt)
	}

	if err != nil {
		h.logger.Error("Relay call failed",
			zap.String("provider", string(id)),
			zap.String("kind", string(attempt.Kind)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, api.RelayError{
			Error:   err.Error(),
			Details: string(attempt.Kind),
		})
		return
	}

	c.JSON(http.StatusOK, api.ChatResponse{
		ID:       "relay-" + uuid.NewString(),
		Object:   "chat.completion",
		Created:  time.Now().Unix(),
		Model:    cfg.Model,
		Provider: string(id),
		Choices: []api.Choice{{
			Index:        0,
			Message:      api.Message{Role: api.Assistant, Content: text},
			FinishReason: "stop",
		}},
	})
}

// MethodNotAllowed answers non-POST calls to the relay paths.
func MethodNotAllowed(c *gin.Context) {
	c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
}
