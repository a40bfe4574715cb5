package api

import "strings"

type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Message is a single turn of a conversation. Order within a slice is conversation order.
type Message struct {
	Role    Role   `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: System, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: User, Content: content}
}

// UserText renders the user side of a conversation: every user message joined by a blank line.
func UserText(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == User {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
