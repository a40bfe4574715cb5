// Package router picks a preferred provider for a prompt and expands it into a full
// fallback sequence.
package router

import (
	"strings"
	"unicode/utf8"

	"github.com/nulzo/prism-relay/internal/llm"
)

const DefaultLongPromptThreshold = 2000

// Policy is a value type; the zero value is not useful, start from DefaultPolicy.
type Policy struct {
	// Fast is preferred unless another rule applies.
	Fast llm.ProviderID
	// LargeContext is preferred for prompts longer than LongPromptThreshold runes.
	LargeContext llm.ProviderID
	// Structured is preferred when the prompt contains any of StructureMarkers.
	Structured llm.ProviderID

	LongPromptThreshold int
	// StructureMarkers are matched case-sensitively.
	StructureMarkers []string

	// Order is the declared order of the fallback tail.
	Order []llm.ProviderID
}

func DefaultPolicy() Policy {
	return Policy{
		Fast:                llm.Groq,
		LargeContext:        llm.Gemini,
		Structured:          llm.DeepSeek,
		LongPromptThreshold: DefaultLongPromptThreshold,
		StructureMarkers:    []string{"JSON", "structure"},
		Order:               append([]llm.ProviderID(nil), llm.Known...),
	}
}

// Preferred applies the rules in order: length first, then structure markers, so a
// marker match always wins over a long prompt.
func (p Policy) Preferred(prompt string) llm.ProviderID {
	preferred := p.Fast

	if utf8.RuneCountInString(prompt) > p.LongPromptThreshold {
		preferred = p.LargeContext
	}

	for _, marker := range p.StructureMarkers {
		if marker != "" && strings.Contains(prompt, marker) {
			preferred = p.Structured
			break
		}
	}

	return preferred
}

// Sequence puts preferred first and the rest of Order after it, without duplicates.
// A preferred provider that is not part of Order is ignored.
func (p Policy) Sequence(preferred llm.ProviderID) []llm.ProviderID {
	known := false
	for _, id := range p.Order {
		if id == preferred {
			known = true
			break
		}
	}
	if !known {
		return append([]llm.ProviderID(nil), p.Order...)
	}

	seq := make([]llm.ProviderID, 0, len(p.Order))
	seq = append(seq, preferred)
	for _, id := range p.Order {
		if id != preferred {
			seq = append(seq, id)
		}
	}
	return seq
}

// Plan is Sequence(Preferred(prompt)).
func (p Policy) Plan(prompt string) []llm.ProviderID {
	return p.Sequence(p.Preferred(prompt))
}
