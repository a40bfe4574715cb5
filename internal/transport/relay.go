package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/prism-relay/internal/httpclient"
	"github.com/nulzo/prism-relay/pkg/api"
)

// Endpoint is a relay path on the relay host.
type Endpoint struct {
	Name string `mapstructure:"name" validate:"required"`
	Path string `mapstructure:"path" validate:"required"`
}

// DefaultEndpoints are probed in this order.
var DefaultEndpoints = []Endpoint{
	{Name: "netlify", Path: "/.netlify/functions/generate"},
	{Name: "vercel", Path: "/api/generate"},
}

// Relay forwards the canonical request to a server-side relay endpoint.
type Relay struct {
	name   string
	url    string
	client httpclient.HTTPClient
}

func NewRelay(name, baseURL, path string, client httpclient.HTTPClient) *Relay {
	url := ""
	if baseURL != "" {
		url = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{name: name, url: url, client: client}
}

// Relays builds one strategy per endpoint, preserving order.
func Relays(baseURL string, endpoints []Endpoint, client httpclient.HTTPClient) []Strategy {
	out := make([]Strategy, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, NewRelay("relay:"+e.Name, baseURL, e.Path, client))
	}
	return out
}

func (r *Relay) Name() string { return r.name }

func (r *Relay) Attempt(ctx context.Context, req *Request) (*Reply, error) {
	if r.url == "" {
		return nil, skip(r.name, errors.New("no relay host configured"))
	}

	payload := api.RelayRequest{
		Provider: string(req.Provider.ID),
		Model:    req.Provider.Model,
		Messages: req.Messages,
	}

	body, err := httpclient.Send(ctx, r.client, http.MethodPost, r.url, nil, payload)
	if err == nil {
		return &Reply{Transport: r.name, Body: body, Relayed: true}, nil
	}

	// the attempt's own deadline is not a deployment signal
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", r.name, ctxErr)
	}

	var transportErr *httpclient.TransportError
	if errors.As(err, &transportErr) {
		return nil, skip(r.name, err)
	}

	var httpErr *httpclient.ProviderHTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusMethodNotAllowed {
			return nil, skip(r.name, err)
		}
	}

	return nil, fmt.Errorf("%s: %w", r.name, err)
}
