package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/conversation"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/engine"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/sessionstore"
)

type fakeQuerier struct {
	result engine.Result
	err    error
	gotK   int
}

func (f *fakeQuerier) Query(ctx context.Context, question string, history []engine.ChatMessage, k int) (engine.Result, error) {
	f.gotK = k
	if f.err != nil {
		return engine.Result{}, f.err
	}
	res := f.result
	res.OriginalQuestion = question
	return res, nil
}

type testClient struct {
	t       *testing.T
	server  *httptest.Server
	cookies []*http.Cookie
}

func newTestClient(t *testing.T, q conversation.Querier, ready bool) *testClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := conversation.NewStore(q, logger)
	srv := NewServer(store, sessionstore.NewMemory(), 12, ready, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testClient{t: t, server: ts}
}

func (c *testClient) do(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if len(resp.Cookies()) > 0 {
		c.cookies = resp.Cookies()
	}

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)
	resp, body := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestInitCreatesSessionAndConversation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)
	resp, body := c.do(http.MethodGet, "/api/init", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["system_ready"])
	assert.NotEmpty(t, body["active_conversation_id"])
	require.NotEmpty(t, c.cookies, "session cookie must be set")

	// same session on the next request keeps the same active conversation
	_, second := c.do(http.MethodGet, "/api/init", nil)
	assert.Equal(t, body["active_conversation_id"], second["active_conversation_id"])
}

func TestQueryNotReady(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, false)
	resp, body := c.do(http.MethodPost, "/api/query", map[string]string{"question": "What is ASIL?"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "System not initialized", body["error"])
}

func TestQueryEmptyQuestion(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)
	resp, body := c.do(http.MethodPost, "/api/query", map[string]string{"question": "  "})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Question is required", body["error"])
}

func TestQuerySuccess(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{result: engine.Result{
		Answer:  "ASIL is a risk classification scheme.",
		Sources: []engine.Source{{Source: "part3.pdf", Page: "12", ContentPreview: "ASIL..."}},
	}}
	c := newTestClient(t, q, true)

	resp, body := c.do(http.MethodPost, "/api/query", map[string]interface{}{
		"question":    "What is ASIL?",
		"num_sources": 4,
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ASIL is a risk classification scheme.", body["answer"])
	assert.Equal(t, "What is ASIL?", body["conversation_title"])
	assert.NotEmpty(t, body["conversation_id"])
	assert.Equal(t, 4, q.gotK)

	// the conversation now holds both turns
	convID := body["conversation_id"].(string)
	resp, conv := c.do(http.MethodGet, "/api/conversations/"+convID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	messages := conv["messages"].([]interface{})
	assert.Len(t, messages, 2)
}

func TestQueryDefaultNumSources(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{result: engine.Result{Answer: "answer"}}
	c := newTestClient(t, q, true)

	c.do(http.MethodPost, "/api/query", map[string]string{"question": "What is ASIL?"})
	assert.Equal(t, 12, q.gotK)
}

func TestNewAndActivateConversation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{result: engine.Result{Answer: "answer"}}, true)

	_, initBody := c.do(http.MethodGet, "/api/init", nil)
	firstID := initBody["active_conversation_id"].(string)

	resp, body := c.do(http.MethodPost, "/api/conversations/new", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	secondID := body["conversation_id"].(string)
	assert.NotEqual(t, firstID, secondID)

	resp, body = c.do(http.MethodPost, "/api/conversations/"+firstID+"/activate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	conv := body["conversation"].(map[string]interface{})
	assert.Equal(t, firstID, conv["id"])

	_, listBody := c.do(http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, firstID, listBody["active_conversation_id"])
}

func TestActivateUnknownConversation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)

	_, initBody := c.do(http.MethodGet, "/api/init", nil)
	activeID := initBody["active_conversation_id"]

	resp, body := c.do(http.MethodPost, "/api/conversations/no-such-id/activate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Conversation not found", body["error"])

	// previously active conversation unchanged
	_, listBody := c.do(http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, activeID, listBody["active_conversation_id"])
}

func TestGetUnknownConversation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)
	resp, _ := c.do(http.MethodGet, "/api/conversations/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteConversationReactivates(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)

	_, initBody := c.do(http.MethodGet, "/api/init", nil)
	firstID := initBody["active_conversation_id"].(string)

	_, newBody := c.do(http.MethodPost, "/api/conversations/new", nil)
	secondID := newBody["conversation_id"].(string)

	resp, _ := c.do(http.MethodDelete, "/api/conversations/"+secondID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, listBody := c.do(http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, firstID, listBody["active_conversation_id"])
	assert.Len(t, listBody["conversations"].([]interface{}), 1)
}

func TestDeleteLastConversationCreatesFresh(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)

	_, initBody := c.do(http.MethodGet, "/api/init", nil)
	onlyID := initBody["active_conversation_id"].(string)

	resp, _ := c.do(http.MethodDelete, "/api/conversations/"+onlyID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, listBody := c.do(http.MethodGet, "/api/conversations", nil)
	convs := listBody["conversations"].([]interface{})
	require.Len(t, convs, 1)
	fresh := convs[0].(map[string]interface{})
	assert.NotEqual(t, onlyID, fresh["id"])
	assert.Equal(t, fresh["id"], listBody["active_conversation_id"])
}

func TestDeleteUnknownConversation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeQuerier{}, true)
	resp, _ := c.do(http.MethodDelete, "/api/conversations/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
