package model

import (
	"fmt"
	"time"
)

// Role is the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two transcript roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ChatMessage is one turn in a transcript. Transcripts only ever grow.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SavedChat is a transcript the user explicitly kept. It is never modified
// after it has been saved.
type SavedChat struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
	Date     time.Time     `json:"date"`
}

const chatTitlePreview = 20

// ChatTitle derives a saved chat's title from the save date and the opening
// message, e.g. "Chat 2024-05-01 - How is the EGX 30 do...".
func ChatTitle(saved time.Time, messages []ChatMessage) string {
	preview := ""
	if len(messages) > 0 {
		r := []rune(messages[0].Content)
		if len(r) > chatTitlePreview {
			r = r[:chatTitlePreview]
		}
		preview = string(r)
	}
	return fmt.Sprintf("Chat %s - %s...", saved.Format("2006-01-02"), preview)
}
