// Package conversation holds the per-session conversation state and the
// operations that mediate between inbound requests and the answering
// engine.
package conversation

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/engine"
)

const (
	// RoleUser and RoleAssistant are the two message roles.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultTitle labels a conversation until its first message.
	DefaultTitle = "New Chat"

	// titleMaxLen caps generated conversation titles.
	titleMaxLen = 50
)

// Message represents a single chat message. The citation fields are
// populated on assistant messages only.
type Message struct {
	Role                   string          `json:"role"`
	Content                string          `json:"content"`
	Sources                []engine.Source `json:"sources,omitempty"`
	UsedContext            bool            `json:"used_context,omitempty"`
	ContextualizedQuestion *string         `json:"contextualized_question,omitempty"`
	Timestamp              time.Time       `json:"timestamp"`
}

// Conversation is a named, ordered thread of messages. Messages are
// append-only and chronological; only whole-conversation deletion
// removes entries.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the per-user container of conversations plus the pointer
// to the active one. The caller owns its persistence and lifetime; the
// store only mutates the structure it is handed.
type Session struct {
	Conversations        map[string]*Conversation `json:"conversations"`
	ActiveConversationID string                   `json:"active_conversation_id"`
}

// NewConversation creates an empty conversation with a generated id and
// the default title.
func NewConversation() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        newConversationID(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TitleFromQuestion derives a conversation title from its first user
// message: newlines flattened, truncated to 50 characters with an
// ellipsis marker when longer.
func TitleFromQuestion(question string) string {
	flat := strings.ReplaceAll(question, "\n", " ")
	runes := []rune(flat)
	if len(runes) > titleMaxLen {
		runes = runes[:titleMaxLen]
	}
	title := string(runes)
	if len([]rune(question)) > titleMaxLen {
		title += "..."
	}
	return title
}

func newConversationID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// rand.Read on crypto/rand does not fail in practice
		panic(err)
	}
	return hex.EncodeToString(b)
}
