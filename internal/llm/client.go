package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nulzo/prism-relay/internal/httpclient"
	"github.com/nulzo/prism-relay/pkg/api"
	"go.uber.org/zap"
)

// Client calls providers directly using locally held credentials.
type Client struct {
	http   httpclient.HTTPClient
	logger *zap.Logger
}

func NewClient(client httpclient.HTTPClient, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: client, logger: logger}
}

// Call encodes messages for cfg, sends them and returns the raw success body.
func (c *Client) Call(ctx context.Context, cfg ProviderConfig, messages []api.Message) ([]byte, error) {
	if !cfg.HasCredential() {
		return nil, missingCredential(cfg)
	}

	wire, err := cfg.Protocol.Encode(cfg, messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.ID, err)
	}

	c.logger.Debug("Calling provider directly",
		zap.String("provider", string(cfg.ID)),
		zap.String("model", cfg.Model),
		zap.String("protocol", string(cfg.Protocol)),
	)

	body, err := httpclient.Send(ctx, c.http, wire.Method, wire.URL, wire.Headers, wire.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.ID, err)
	}
	return body, nil
}

// Complete is Call followed by Decode.
func (c *Client) Complete(ctx context.Context, cfg ProviderConfig, messages []api.Message) (string, error) {
	body, err := c.Call(ctx, cfg, messages)
	if err != nil {
		return "", err
	}
	text, err := cfg.Protocol.Decode(body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cfg.ID, err)
	}
	return text, nil
}
