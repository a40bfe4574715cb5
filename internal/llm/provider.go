package llm

import (
	"fmt"
	"strings"
	"time"
)

type ProviderID string

const (
	Groq        ProviderID = "groq"
	Gemini      ProviderID = "gemini"
	DeepSeek    ProviderID = "deepseek"
	OpenRouter  ProviderID = "openrouter"
	HuggingFace ProviderID = "huggingface"
)

// Known lists every supported provider in declared order. Fallback sequences use this
// order for everything after the preferred provider.
var Known = []ProviderID{Groq, Gemini, OpenRouter, DeepSeek, HuggingFace}

// ParseProviderID accepts any casing of a known provider id.
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Known {
		if k == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// ProviderConfig describes how to reach one provider. It is built once at start-up and
// passed by value; nothing mutates it afterwards.
type ProviderConfig struct {
	ID       ProviderID
	Protocol Protocol

	// Endpoint may contain a {model} placeholder.
	Endpoint string
	Model    string

	// CredentialKey names the environment variable the credential is read from.
	CredentialKey string
	APIKey        string

	Timeout time.Duration
}

// URL renders the endpoint for the given model.
func (c ProviderConfig) URL(model string) string {
	if model == "" {
		model = c.Model
	}
	return strings.ReplaceAll(c.Endpoint, "{model}", model)
}

// WithModel returns a copy of the config using model, or the config unchanged when model is empty.
func (c ProviderConfig) WithModel(model string) ProviderConfig {
	if model != "" {
		c.Model = model
	}
	return c
}

func (c ProviderConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Catalog maps every known provider to its configuration.
type Catalog map[ProviderID]ProviderConfig

func (c Catalog) Get(id ProviderID) (ProviderConfig, error) {
	cfg, ok := c[id]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return cfg, nil
}
