package llm

import "time"

const defaultTimeout = 30 * time.Second

// Defaults returns the built-in configuration for every known provider, without credentials.
func Defaults() Catalog {
	return Catalog{
		Groq: {
			ID:            Groq,
			Protocol:      ChatCompletions,
			Endpoint:      "https://api.groq.com/openai/v1/chat/completions",
			Model:         "llama-3.3-70b-versatile",
			CredentialKey: "GROQ_API_KEY",
			Timeout:       15 * time.Second,
		},
		Gemini: {
			ID:            Gemini,
			Protocol:      SinglePrompt,
			Endpoint:      "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
			Model:         "gemini-pro",
			CredentialKey: "GEMINI_API_KEY",
			Timeout:       defaultTimeout,
		},
		DeepSeek: {
			ID:            DeepSeek,
			Protocol:      ChatCompletions,
			Endpoint:      "https://api.deepseek.com/chat/completions",
			Model:         "deepseek-chat",
			CredentialKey: "DEEPSEEK_API_KEY",
			Timeout:       defaultTimeout,
		},
		OpenRouter: {
			ID:            OpenRouter,
			Protocol:      ChatCompletions,
			Endpoint:      "https://openrouter.ai/api/v1/chat/completions",
			Model:         "openai/gpt-3.5-turbo",
			CredentialKey: "OPENROUTER_API_KEY",
			Timeout:       defaultTimeout,
		},
		HuggingFace: {
			ID:            HuggingFace,
			Protocol:      TextGeneration,
			Endpoint:      "https://api-inference.huggingface.co/models/{model}",
			Model:         "mistralai/Mixtral-8x7B-Instruct-v0.1",
			CredentialKey: "HUGGINGFACE_API_KEY",
			Timeout:       45 * time.Second,
		},
	}
}
