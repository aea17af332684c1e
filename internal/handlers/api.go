package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/your-org/babelbridge/internal/store"
)

// Routes registers every route on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /webhook", s.HandleWebhook)
	mux.HandleFunc("GET /api/chats", s.HandleListChats)
	mux.HandleFunc("GET /api/chats/{jid}", s.HandleGetChat)
	mux.HandleFunc("DELETE /api/chats/{jid}", s.HandleDeleteChat)
	mux.HandleFunc("GET /api/chats/{jid}/messages", s.HandleListMessages)
	mux.HandleFunc("GET /api/contacts", s.HandleSearchContacts)
	mux.HandleFunc("GET /api/contacts/{jid}", s.HandleGetContact)
	mux.HandleFunc("POST /api/send", s.HandleSend)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// HandleListChats returns chats ordered by recency.
func (s *Server) HandleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.log.Error("list chats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list chats failed")
		return
	}
	writeJSON(w, map[string]any{"chats": chats})
}

// HandleGetChat returns one chat, 404 when unknown.
func (s *Server) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("jid")
	chat, err := s.store.GetChat(r.Context(), jid)
	if err != nil {
		s.log.Error("get chat failed", zap.String("jid", jid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get chat failed")
		return
	}
	if chat == nil {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, chat)
}

// HandleDeleteChat removes a chat and all of its messages.
func (s *Server) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("jid")
	err := s.store.DeleteChat(r.Context(), jid)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		s.log.Error("delete chat failed", zap.String("jid", jid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete chat failed")
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

// HandleListMessages returns a chat's messages, oldest first. Query params:
// since (RFC 3339 lower bound) and limit.
func (s *Server) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("jid")

	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since %q: use RFC 3339", v))
			return
		}
		since = &t
	}

	messages, err := s.store.ListMessages(r.Context(), jid, since, queryInt(r, "limit", 50))
	if err != nil {
		s.log.Error("list messages failed", zap.String("jid", jid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list messages failed")
		return
	}
	writeJSON(w, map[string]any{"messages": messages})
}

// HandleGetContact returns one contact, 404 when unknown.
func (s *Server) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("jid")
	contact, err := s.store.GetContact(r.Context(), jid)
	if err != nil {
		s.log.Error("get contact failed", zap.String("jid", jid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get contact failed")
		return
	}
	if contact == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, contact)
}

// HandleSearchContacts matches contacts by name or phone number substring.
func (s *Server) HandleSearchContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	contacts, err := s.store.SearchContacts(r.Context(), q)
	if err != nil {
		s.log.Error("search contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search contacts failed")
		return
	}
	writeJSON(w, map[string]any{"contacts": contacts})
}

type sendRequest struct {
	ChatJID string `json:"chat_jid"`
	Content string `json:"content"`
}

// HandleSend delivers a manual outbound message through the bridge and
// persists it.
func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ChatJID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "chat_jid and content are required")
		return
	}

	msg, err := s.relay.SendOutbound(r.Context(), req.ChatJID, req.Content)
	if err != nil {
		s.log.Error("send failed", zap.String("chat_jid", req.ChatJID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "send failed")
		return
	}
	writeJSON(w, msg)
}
