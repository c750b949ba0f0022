// Package engine implements the conversational retrieval-augmented
// answering core: deciding whether a question leans on prior turns,
// assembling retrieved context, and driving the completion service.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/completion"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/retrieval"
	"go.opentelemetry.io/otel/trace"
)

// ChatMessage is one prior turn as consumed by the engine.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source cites one retrieved passage backing an answer.
type Source struct {
	Source         string `json:"source"`
	Page           string `json:"page"`
	ContentPreview string `json:"content_preview"`
}

// Result is the outcome of one query. ContextualizedQuestion is set
// only when the question was flagged as depending on history.
type Result struct {
	Answer                 string   `json:"answer"`
	Sources                []Source `json:"sources"`
	OriginalQuestion       string   `json:"original_question"`
	ContextualizedQuestion *string  `json:"contextualized_question"`
	UsedContext            bool     `json:"used_context"`
}

// Engine orchestrates retrieval, prompt assembly, and generation. It is
// stateless across queries; all configuration is fixed at construction,
// so a single instance is safe to share between concurrent requests.
type Engine struct {
	retriever retrieval.Retriever
	completer completion.Completer
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates an Engine from its two service collaborators.
func New(retriever retrieval.Retriever, completer completion.Completer, logger *slog.Logger, tracer trace.Tracer) *Engine {
	return &Engine{
		retriever: retriever,
		completer: completer,
		logger:    logger,
		tracer:    tracer,
	}
}

// Query answers a question against the corpus and the conversation so
// far. Service failures degrade the result instead of failing it:
// retrieval errors yield an empty context, completion errors yield a
// fixed fallback answer. Retrieval always completes before the
// completion request is built.
func (e *Engine) Query(ctx context.Context, question string, history []ChatMessage, k int) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "rag_query")
	defer span.End()

	formattedHistory := FormatHistory(history)

	// A first-turn question can never depend on history.
	needsContext := NeedsContext(question) && len(history) > 0

	// The retrieval query is the raw question; the contextualization
	// flag is reported but does not rewrite the search.
	searchQuery := question

	passages := e.retrievePassages(ctx, searchQuery, k)
	contextBlock := FormatPassages(passages)

	userMessage := fmt.Sprintf(userPromptFormat, contextBlock, formattedHistory, question)

	answer, err := e.completer.Complete(ctx, systemPrompt, userMessage)
	if err != nil {
		e.logger.Warn("completion failed, returning fallback answer", "error", err)
		answer = fallbackAnswer
	}

	sources := make([]Source, 0, len(passages))
	for _, p := range passages {
		page := p.Page
		if page == "" {
			page = "N/A"
		}
		source := p.Source
		if source == "" {
			source = "Unknown"
		}
		sources = append(sources, Source{
			Source:         source,
			Page:           page,
			ContentPreview: Preview(p.Text),
		})
	}

	result := Result{
		Answer:           answer,
		Sources:          sources,
		OriginalQuestion: question,
		UsedContext:      needsContext,
	}
	if needsContext {
		result.ContextualizedQuestion = &searchQuery
	}

	return result, nil
}

// retrievePassages fetches up to k passages for the query. Retrieval
// failure is non-fatal: the engine proceeds with no retrieved context.
func (e *Engine) retrievePassages(ctx context.Context, query string, k int) []retrieval.Passage {
	passages, err := e.retriever.Search(ctx, query, k)
	if err != nil {
		e.logger.Warn("retrieval failed, proceeding without context", "error", err)
		return nil
	}
	return passages
}
