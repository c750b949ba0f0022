package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/engine"
)

var (
	// ErrNotFound indicates the referenced conversation id is unknown
	// to the session.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyQuestion indicates a submitted question was empty.
	ErrEmptyQuestion = errors.New("question is required")
)

// Querier is the answering engine as seen by the store.
type Querier interface {
	Query(ctx context.Context, question string, history []engine.ChatMessage, k int) (engine.Result, error)
}

// SubmitResult is the engine result plus the conversation it landed in.
type SubmitResult struct {
	engine.Result
	ConversationID    string `json:"conversation_id"`
	ConversationTitle string `json:"conversation_title"`
}

// Store applies conversation operations to an explicit Session. It
// holds no session state of its own; concurrent mutation of the same
// session is the caller's to serialize.
type Store struct {
	engine Querier
	logger *slog.Logger
}

// NewStore creates a Store backed by the given engine.
func NewStore(eng Querier, logger *slog.Logger) *Store {
	return &Store{engine: eng, logger: logger}
}

// EnsureConversations idempotently initializes the session's
// conversation map.
func (st *Store) EnsureConversations(s *Session) {
	if s.Conversations == nil {
		s.Conversations = map[string]*Conversation{}
	}
}

// EnsureActive returns the active conversation id, creating and
// activating a fresh conversation when none is set. Calling it twice
// without other mutation returns the same id.
func (st *Store) EnsureActive(s *Session) string {
	st.EnsureConversations(s)
	if s.ActiveConversationID != "" {
		if _, ok := s.Conversations[s.ActiveConversationID]; ok {
			return s.ActiveConversationID
		}
	}
	conv := NewConversation()
	s.Conversations[conv.ID] = conv
	s.ActiveConversationID = conv.ID
	st.logger.Info("created conversation", "conversation_id", conv.ID)
	return conv.ID
}

// HistoryFor projects a conversation's message log into the role and
// content pairs the engine consumes.
func (st *Store) HistoryFor(s *Session, id string) []engine.ChatMessage {
	st.EnsureConversations(s)
	conv, ok := s.Conversations[id]
	if !ok {
		return nil
	}
	history := make([]engine.ChatMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		history = append(history, engine.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return history
}

// SubmitQuestion resolves the active conversation, queries the engine
// with its history, and appends the question and answer as messages.
func (st *Store) SubmitQuestion(ctx context.Context, s *Session, question string, k int) (SubmitResult, error) {
	if strings.TrimSpace(question) == "" {
		return SubmitResult{}, ErrEmptyQuestion
	}

	id := st.EnsureActive(s)
	conv := s.Conversations[id]

	if len(conv.Messages) == 0 {
		conv.Title = TitleFromQuestion(question)
	}

	history := st.HistoryFor(s, id)

	result, err := st.engine.Query(ctx, question, history, k)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("query failed: %w", err)
	}

	now := time.Now().UTC()
	conv.Messages = append(conv.Messages, Message{
		Role:      RoleUser,
		Content:   question,
		Timestamp: now,
	})
	conv.Messages = append(conv.Messages, Message{
		Role:                   RoleAssistant,
		Content:                result.Answer,
		Sources:                result.Sources,
		UsedContext:            result.UsedContext,
		ContextualizedQuestion: result.ContextualizedQuestion,
		Timestamp:              now,
	})
	conv.UpdatedAt = now

	st.logger.Info("question answered",
		"conversation_id", conv.ID,
		"used_context", result.UsedContext,
		"sources", len(result.Sources),
	)

	return SubmitResult{
		Result:            result,
		ConversationID:    conv.ID,
		ConversationTitle: conv.Title,
	}, nil
}

// NewConversation creates and activates a fresh empty conversation.
func (st *Store) NewConversation(s *Session) *Conversation {
	st.EnsureConversations(s)
	conv := NewConversation()
	s.Conversations[conv.ID] = conv
	s.ActiveConversationID = conv.ID
	st.logger.Info("created conversation", "conversation_id", conv.ID)
	return conv
}

// Activate switches the active conversation. An unknown id fails with
// ErrNotFound and leaves the previous active conversation unchanged.
func (st *Store) Activate(s *Session, id string) error {
	st.EnsureConversations(s)
	if _, ok := s.Conversations[id]; !ok {
		return ErrNotFound
	}
	s.ActiveConversationID = id
	return nil
}

// Get returns a conversation by id.
func (st *Store) Get(s *Session, id string) (*Conversation, error) {
	st.EnsureConversations(s)
	conv, ok := s.Conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// Delete removes a conversation. When the deleted conversation was
// active, the first remaining conversation (smallest id, so the choice
// is deterministic) becomes active; with none remaining a fresh
// conversation is created and activated.
func (st *Store) Delete(s *Session, id string) error {
	st.EnsureConversations(s)
	if _, ok := s.Conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.Conversations, id)

	if s.ActiveConversationID != id {
		return nil
	}

	if len(s.Conversations) > 0 {
		ids := make([]string, 0, len(s.Conversations))
		for cid := range s.Conversations {
			ids = append(ids, cid)
		}
		sort.Strings(ids)
		s.ActiveConversationID = ids[0]
		return nil
	}

	conv := NewConversation()
	s.Conversations[conv.ID] = conv
	s.ActiveConversationID = conv.ID
	st.logger.Info("created conversation", "conversation_id", conv.ID)
	return nil
}

// List returns the session's conversations sorted by creation time,
// oldest first.
func (st *Store) List(s *Session) []*Conversation {
	st.EnsureConversations(s)
	convs := make([]*Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		convs = append(convs, c)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})
	return convs
}
