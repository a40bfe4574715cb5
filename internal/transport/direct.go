package transport

import (
	"context"

	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/pkg/api"
)

// Caller issues a provider request in-process. *llm.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, cfg llm.ProviderConfig, messages []api.Message) ([]byte, error)
}

// Direct calls the provider from this process with the locally configured credential.
// It never skips: its failure is final.
type Direct struct {
	caller Caller
}

func NewDirect(caller Caller) *Direct {
	return &Direct{caller: caller}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Attempt(ctx context.Context, req *Request) (*Reply, error) {
	body, err := d.caller.Call(ctx, req.Provider, req.Messages)
	if err != nil {
		return nil, err
	}
	return &Reply{Transport: d.Name(), Body: body}, nil
}
