package api

// RelayRequest is the body accepted by the relay endpoints. An empty or unrecognised
// provider is served by the fast chat provider.
type RelayRequest struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages" binding:"required,min=1,dive"`
}

// RelayError is the body a relay endpoint answers with on a non-2xx status.
type RelayError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ChatResponse is the normalized chat-completions shape every relay answers with,
// whatever the upstream wire protocol was.
type ChatResponse struct {
	ID       string   `json:"id"`
	Object   string   `json:"object"` // "chat.completion"
	Created  int64    `json:"created"`
	Model    string   `json:"model"`
	Provider string   `json:"provider"`
	Choices  []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// GenerateRequest runs the full failover sequence server side.
type GenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	System   string `json:"system,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type GenerateResponse struct {
	Text     string           `json:"text"`
	Provider string           `json:"provider"`
	Attempts []AttemptSummary `json:"attempts"`
}

// AttemptSummary is the wire form of a single provider attempt.
type AttemptSummary struct {
	Provider  string `json:"provider"`
	Transport string `json:"transport,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
