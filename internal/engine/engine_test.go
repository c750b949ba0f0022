package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/retrieval"
)

type fakeRetriever struct {
	passages []retrieval.Passage
	err      error
	gotQuery string
	gotK     int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]retrieval.Passage, error) {
	f.gotQuery = query
	f.gotK = k
	return f.passages, f.err
}

type fakeCompleter struct {
	answer    string
	err       error
	gotSystem string
	gotUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.gotSystem = system
	f.gotUser = user
	return f.answer, f.err
}

func newTestEngine(r *fakeRetriever, c *fakeCompleter) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	return New(r, c, logger, tracer)
}

func TestQueryFirstTurn(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{passages: []retrieval.Passage{
		{Text: "ASIL determination follows hazard analysis.", Source: "part3.pdf", Page: "15"},
	}}
	c := &fakeCompleter{answer: "ASIL is determined during hazard analysis."}
	eng := newTestEngine(r, c)

	res, err := eng.Query(context.Background(), "What is it used for?", nil, 5)
	require.NoError(t, err)

	assert.Equal(t, "ASIL is determined during hazard analysis.", res.Answer)
	assert.Equal(t, "What is it used for?", res.OriginalQuestion)
	// pronoun heuristic fires, but an empty history can never be flagged
	assert.False(t, res.UsedContext)
	assert.Nil(t, res.ContextualizedQuestion)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "part3.pdf", res.Sources[0].Source)
	assert.Equal(t, "15", res.Sources[0].Page)
	assert.Equal(t, "ASIL determination follows hazard analysis....", res.Sources[0].ContentPreview)
	assert.Equal(t, 5, r.gotK)
}

func TestQueryWithHistoryFlagsContext(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{}
	c := &fakeCompleter{answer: "It applies during system design."}
	eng := newTestEngine(r, c)

	history := []ChatMessage{
		{Role: "user", Content: "What is ASIL?"},
		{Role: "assistant", Content: "A risk classification."},
	}
	res, err := eng.Query(context.Background(), "How does it apply?", history, 3)
	require.NoError(t, err)

	assert.True(t, res.UsedContext)
	require.NotNil(t, res.ContextualizedQuestion)
	// the retrieval query is never rewritten from history
	assert.Equal(t, "How does it apply?", *res.ContextualizedQuestion)
	assert.Equal(t, "How does it apply?", r.gotQuery)

	assert.Contains(t, c.gotUser, "User: What is ASIL?")
	assert.Contains(t, c.gotUser, "Assistant: A risk classification.")
	assert.Contains(t, c.gotUser, "Question: How does it apply?")
}

func TestQueryRetrievalFailure(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{err: errors.New("search service unavailable")}
	c := &fakeCompleter{answer: "Here is what I know without the standard text."}
	eng := newTestEngine(r, c)

	res, err := eng.Query(context.Background(), "What are the hazard analysis steps required by part three?", nil, 12)
	require.NoError(t, err)

	assert.Empty(t, res.Sources)
	assert.NotEmpty(t, res.Answer)
	// the prompt still carries the first-turn sentinel
	assert.Contains(t, c.gotUser, "This is the first question in our conversation.")
}

func TestQueryCompletionFailure(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{passages: []retrieval.Passage{
		{Text: "Functional safety concept.", Source: "part3.pdf", Page: "20"},
	}}
	c := &fakeCompleter{err: errors.New("model timeout")}
	eng := newTestEngine(r, c)

	res, err := eng.Query(context.Background(), "What are the hazard analysis steps required by part three?", nil, 12)
	require.NoError(t, err)

	assert.Equal(t, "I encountered an error while generating the answer. Please try again.", res.Answer)
	// sources reflect whatever retrieval succeeded regardless of generation
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "part3.pdf", res.Sources[0].Source)
}

func TestQuerySystemPromptIsFixed(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{}
	c := &fakeCompleter{answer: "ok"}
	eng := newTestEngine(r, c)

	_, err := eng.Query(context.Background(), "What are the hazard analysis steps required by part three?", nil, 1)
	require.NoError(t, err)

	assert.Contains(t, c.gotSystem, "ISO 26262 functional safety expert")
}
