package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/babelbridge/internal/relay"
	"github.com/your-org/babelbridge/internal/store"
)

// Relayer processes normalized inbound events and manual outbound sends.
type Relayer interface {
	ProcessInbound(ctx context.Context, ev relay.Event) error
	SendOutbound(ctx context.Context, chatJID, text string) (store.Message, error)
}

// Store is the read/delete surface the API handlers need.
type Store interface {
	ListChats(ctx context.Context, limit int) ([]store.Chat, error)
	GetChat(ctx context.Context, jid string) (*store.Chat, error)
	DeleteChat(ctx context.Context, jid string) error
	ListMessages(ctx context.Context, chatJID string, since *time.Time, limit int) ([]store.Message, error)
	GetContact(ctx context.Context, jid string) (*store.Contact, error)
	SearchContacts(ctx context.Context, query string) ([]store.Contact, error)
}

// Server holds the relay and store behind every HTTP route.
type Server struct {
	relay Relayer
	store Store
	log   *zap.Logger
}

func NewServer(r Relayer, s Store, log *zap.Logger) *Server {
	return &Server{relay: r, store: s, log: log}
}

// ===== Tolerant payload structs =====

// inboundMessage accepts both snake_case (the bridge's documented contract)
// and camelCase variants seen in the wild.
type inboundMessage struct {
	MessageID  string    `json:"message_id"`
	MessageID2 string    `json:"messageId"`
	Timestamp  time.Time `json:"timestamp"`
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	ChatJID    string    `json:"chat_jid"`
	ChatJID2   string    `json:"chatJid"`
	ChatName   *string   `json:"chat_name"`
	IsFromMe   bool      `json:"is_from_me"`
	MediaType  *string   `json:"media_type"`
}

type payloadEnvelope struct {
	Message inboundMessage `json:"message"`
}

func (m *inboundMessage) norm() {
	if m.ChatJID == "" && m.ChatJID2 != "" {
		m.ChatJID = m.ChatJID2
	}
	if m.MessageID == "" && m.MessageID2 != "" {
		m.MessageID = m.MessageID2
	}
}

// parsePayload accepts either a flat event object or one wrapped in
// {"message": {...}}.
func parsePayload(r *http.Request) (inboundMessage, error) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, 2<<20)) // 2MB
	if err != nil {
		return inboundMessage{}, err
	}

	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		msg := env.Message
		msg.norm()
		if msg.ChatJID != "" {
			return msg, nil
		}
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return inboundMessage{}, err
	}
	msg.norm()
	return msg, nil
}

// HandleWebhook accepts one inbound event from the bridge. Once the payload
// parses, the response is always 200: delivery retries are the bridge's job
// and redelivery storms help nobody. Processing failures are logged instead.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	msg, err := parsePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg.ChatJID == "" || msg.MessageID == "" || msg.Timestamp.IsZero() {
		writeError(w, http.StatusBadRequest, "chat_jid, message_id and timestamp are required")
		return
	}

	ev := relay.Event{
		MessageID: msg.MessageID,
		Timestamp: msg.Timestamp,
		Sender:    msg.Sender,
		Content:   msg.Content,
		ChatJID:   msg.ChatJID,
		ChatName:  msg.ChatName,
		IsFromMe:  msg.IsFromMe,
		MediaType: msg.MediaType,
	}
	if err := s.relay.ProcessInbound(r.Context(), ev); err != nil {
		s.log.Error("webhook processing failed",
			zap.String("message_id", ev.MessageID),
			zap.String("chat_jid", ev.ChatJID),
			zap.Error(err))
	}

	writeJSON(w, map[string]string{"status": "success", "message": "Message processed successfully"})
}

// HandleHealth is the liveness probe.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "timestamp": time.Now().Unix()})
}
