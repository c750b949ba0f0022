// Package api is the HTTP boundary of the assistant. It resolves the
// caller's session, delegates to the conversation store, and maps store
// errors to structured responses.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onshammemii/iso-26262-assistant-v2/internal/conversation"
	"github.com/onshammemii/iso-26262-assistant-v2/internal/sessionstore"
)

const sessionCookie = "session_id"

// Server wires HTTP routes to the conversation store. Readiness is
// decided once at startup: the engine is constructed before the server
// begins accepting requests.
type Server struct {
	store    *conversation.Store
	sessions sessionstore.Store
	defaultK int
	ready    bool
	logger   *slog.Logger
}

// NewServer creates the HTTP boundary. ready reports whether the
// answering engine was initialized at startup.
func NewServer(store *conversation.Store, sessions sessionstore.Store, defaultK int, ready bool, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		defaultK: defaultK,
		ready:    ready,
		logger:   logger,
	}
}

// Router returns the configured route set.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/init", s.handleInit).Methods(http.MethodGet)
	r.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/api/conversations/new", s.handleNewConversation).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations/{id}/activate", s.handleActivateConversation).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	r.HandleFunc("/api/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveSession loads the caller's session, minting a session cookie
// when none is present.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (string, *conversation.Session, bool) {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = newSessionID()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
		})
	}

	sess, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load session", "session_id", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to load session")
		return "", nil, false
	}
	return id, sess, true
}

// saveSession persists the session after mutation.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, id string, sess *conversation.Session) bool {
	if err := s.sessions.Save(r.Context(), id, sess); err != nil {
		s.logger.Error("failed to save session", "session_id", id, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to save session")
		return false
	}
	return true
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	activeID := s.store.EnsureActive(sess)
	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]interface{}{
		"success":                s.ready,
		"system_ready":           s.ready,
		"conversations":          s.store.List(sess),
		"active_conversation_id": activeID,
	})
}

type queryRequest struct {
	Question   string `json:"question"`
	NumSources int    `json:"num_sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.ready {
		JSONError(w, http.StatusServiceUnavailable, "System not initialized")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.NumSources <= 0 {
		req.NumSources = s.defaultK
	}

	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	result, err := s.store.SubmitQuestion(r.Context(), sess, req.Question, req.NumSources)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]interface{}{
		"success":                 true,
		"answer":                  result.Answer,
		"sources":                 result.Sources,
		"used_context":            result.UsedContext,
		"contextualized_question": result.ContextualizedQuestion,
		"conversation_id":         result.ConversationID,
		"conversation_title":      result.ConversationTitle,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	activeID := s.store.EnsureActive(sess)
	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]interface{}{
		"conversations":          s.store.List(sess),
		"active_conversation_id": activeID,
	})
}

func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	conv := s.store.NewConversation(sess)
	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"conversation_id": conv.ID,
	})
}

func (s *Server) handleActivateConversation(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]

	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	if err := s.store.Activate(sess, convID); err != nil {
		s.writeStoreError(w, err)
		return
	}
	conv, err := s.store.Get(sess, convID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"conversation": conv,
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]

	_, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	conv, err := s.store.Get(sess, convID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	_ = JSONWrite(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]

	id, sess, ok := s.resolveSession(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(sess, convID); err != nil {
		s.writeStoreError(w, err)
		return
	}

	if !s.saveSession(w, r, id, sess) {
		return
	}

	_ = JSONWrite(w, http.StatusOK, map[string]bool{"success": true})
}

// writeStoreError maps store errors onto the error taxonomy the client
// sees: bad input, not found, or an internal failure.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyQuestion):
		JSONError(w, http.StatusBadRequest, "Question is required")
	case errors.Is(err, conversation.ErrNotFound):
		JSONError(w, http.StatusNotFound, "Conversation not found")
	default:
		s.logger.Error("request failed", "error", err)
		JSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
