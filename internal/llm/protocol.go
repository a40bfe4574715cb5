package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nulzo/prism-relay/pkg/api"
)

// Protocol is the wire family a provider speaks. The set is closed; Encode and Decode
// switch on it rather than dispatching through registered implementations.
type Protocol string

const (
	// ChatCompletions covers OpenAI-compatible backends.
	ChatCompletions Protocol = "chat_completions"
	// SinglePrompt covers backends without native multi-turn structure.
	SinglePrompt Protocol = "single_prompt"
	// TextGeneration covers inference-only backends with no chat abstraction.
	TextGeneration Protocol = "text_generation"
)

const (
	textGenerationMaxTokens = 500
	continuationCue         = "\nAssistant:"
)

// WireRequest is an encoded provider call.
type WireRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []api.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatChoice struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

type textGenerationParameters struct {
	MaxNewTokens   int  `json:"max_new_tokens"`
	ReturnFullText bool `json:"return_full_text"`
}

type textGenerationRequest struct {
	Inputs     string                   `json:"inputs"`
	Parameters textGenerationParameters `json:"parameters"`
}

type generationRecord struct {
	GeneratedText *string `json:"generated_text"`
}

// Encode translates messages into the provider's wire request.
func (p Protocol) Encode(cfg ProviderConfig, messages []api.Message) (*WireRequest, error) {
	switch p {
	case ChatCompletions:
		return &WireRequest{
			Method:  http.MethodPost,
			URL:     cfg.URL(""),
			Headers: bearer(cfg.APIKey),
			Body: chatRequest{
				Model:    cfg.Model,
				Messages: append([]api.Message(nil), messages...),
				Stream:   false,
			},
		}, nil

	case SinglePrompt:
		return &WireRequest{
			Method:  http.MethodPost,
			URL:     withQueryKey(cfg.URL(""), cfg.APIKey),
			Headers: map[string]string{},
			Body: geminiRequest{
				Contents: []geminiContent{{Parts: []geminiPart{{Text: FlattenTagged(messages)}}}},
			},
		}, nil

	case TextGeneration:
		return &WireRequest{
			Method:  http.MethodPost,
			URL:     cfg.URL(""),
			Headers: bearer(cfg.APIKey),
			Body: textGenerationRequest{
				Inputs: FlattenTranscript(messages) + continuationCue,
				Parameters: textGenerationParameters{
					MaxNewTokens:   textGenerationMaxTokens,
					ReturnFullText: false,
				},
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported wire protocol %q", p)
}

// Decode extracts the generated text from a successful provider response. Missing optional
// fields decode to an empty string; only a body that is not JSON at all is a DecodeError.
func (p Protocol) Decode(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", &DecodeError{Protocol: p, Err: errors.New("empty body")}
	}

	switch p {
	case ChatCompletions:
		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &DecodeError{Protocol: p, Err: err}
		}
		return firstChoice(resp.Choices), nil

	case SinglePrompt:
		var resp geminiResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &DecodeError{Protocol: p, Err: err}
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", nil
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil

	case TextGeneration:
		return decodeGeneration(p, body)
	}

	return "", &DecodeError{Protocol: p, Err: errors.New("unsupported wire protocol")}
}

// DecodeRelayed reads a response that came back through a relay endpoint. Relays answer with
// the normalized chat-completions shape or a bare generated_text record; anything else is
// treated as the provider's native shape. A text-generation object carrying neither field
// (e.g. {"error":"model loading"}) decodes to "" rather than to the raw payload.
func (p Protocol) DecodeRelayed(body []byte) (string, error) {
	var envelope struct {
		Choices       []chatChoice `json:"choices"`
		GeneratedText *string      `json:"generated_text"`
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &envelope) == nil {
		if envelope.Choices != nil {
			return firstChoice(envelope.Choices), nil
		}
		if envelope.GeneratedText != nil {
			return *envelope.GeneratedText, nil
		}
		if p == TextGeneration {
			return "", nil
		}
	}
	return p.Decode(body)
}

func decodeGeneration(p Protocol, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", &DecodeError{Protocol: p, Err: errors.New("invalid JSON")}
	}

	if body[0] == '[' {
		var records []generationRecord
		if err := json.Unmarshal(body, &records); err == nil {
			if len(records) == 0 {
				return "", &DecodeError{Protocol: p, Err: errors.New("no generation records")}
			}
			if records[0].GeneratedText != nil {
				return *records[0].GeneratedText, nil
			}
		}
		return string(body), nil
	}

	var record generationRecord
	if err := json.Unmarshal(body, &record); err == nil && record.GeneratedText != nil {
		return *record.GeneratedText, nil
	}

	return string(body), nil
}

func firstChoice(choices []chatChoice) string {
	if len(choices) == 0 || choices[0].Message == nil {
		return ""
	}
	return choices[0].Message.Content
}

// FlattenTagged renders "[ROLE]: content" per message, separated by a blank line.
func FlattenTagged(messages []api.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("[%s]: %s", strings.ToUpper(string(m.Role)), m.Content))
	}
	return strings.Join(parts, "\n\n")
}

// FlattenTranscript renders "role: content" per line.
func FlattenTranscript(messages []api.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(parts, "\n")
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func withQueryKey(endpoint, key string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "key=" + url.QueryEscape(key)
}
