package store

import (
	"strings"
	"time"
)

// Chat is one conversation (individual or group). The last_* columns are a
// denormalized snapshot of the newest message in the chat, maintained by
// AppendMessage so conversation lists render without joining messages.
type Chat struct {
	JID             string     `json:"jid"`
	Name            *string    `json:"name"`
	LastMessageTime *time.Time `json:"last_message_time"`
	LastMessage     *string    `json:"last_message"`
	LastSender      *string    `json:"last_sender"`
	LastIsFromMe    *bool      `json:"last_is_from_me"`
}

// IsGroup reports whether the chat JID belongs to a group conversation.
func (c Chat) IsGroup() bool {
	return strings.HasSuffix(c.JID, "@g.us")
}

// Message is a single persisted message. Rows are append-only: once written,
// only the owning chat's summary fields ever change.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Content   *string   `json:"content"`
	IsFromMe  bool      `json:"is_from_me"`
	ChatJID   string    `json:"chat_jid"`
	MediaType *string   `json:"media_type"`
}

// Contact maps a JID to a phone number and optional display name. Contacts are
// independent of chats; phone_number is intentionally not unique.
type Contact struct {
	JID         string  `json:"jid"`
	PhoneNumber string  `json:"phone_number"`
	Name        *string `json:"name"`
}

// AppendMessageParams carries the columns for a new message row.
type AppendMessageParams struct {
	ID        string
	Timestamp time.Time
	Sender    string
	Content   *string
	IsFromMe  bool
	ChatJID   string
	MediaType *string
}
