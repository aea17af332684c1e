package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes surfaced as part of the store's error taxonomy.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the Postgres data access layer for chats, messages and contacts.
type Store struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool for the given URL and wraps it in a Store.
// Pool limits are tuned for a single-account relay.
func Connect(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool. Used by tests that manage their own connection.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the schema on startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertChat creates the chat row if absent, else updates name when a non-nil
// value is supplied. An existing non-null name is never overwritten with null.
func (s *Store) UpsertChat(ctx context.Context, jid string, name *string) (Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chats (jid, name)
		VALUES ($1, $2)
		ON CONFLICT (jid) DO UPDATE SET name = COALESCE(EXCLUDED.name, chats.name)
		RETURNING jid, name, last_message_time, last_message, last_sender, last_is_from_me
	`, jid, name).Scan(&c.JID, &c.Name, &c.LastMessageTime, &c.LastMessage, &c.LastSender, &c.LastIsFromMe)
	if err != nil {
		return Chat{}, fmt.Errorf("upsert chat %s: %w", jid, err)
	}
	return c, nil
}

// UpsertContact creates or updates a contact with the same null-preserving
// name semantics as UpsertChat. The phone number always takes the new value.
func (s *Store) UpsertContact(ctx context.Context, jid, phoneNumber string, name *string) (Contact, error) {
	var c Contact
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (jid, phone_number, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (jid) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			name         = COALESCE(EXCLUDED.name, contacts.name)
		RETURNING jid, phone_number, name
	`, jid, phoneNumber, name).Scan(&c.JID, &c.PhoneNumber, &c.Name)
	if err != nil {
		return Contact{}, fmt.Errorf("upsert contact %s: %w", jid, err)
	}
	return c, nil
}

// AppendMessage inserts a message and, in the same transaction, refreshes the
// parent chat's denormalized summary when this message is the newest seen so
// far for that chat. Returns ErrDuplicateID on id collision and ErrUnknownChat
// when chat_jid references no chat; in both cases nothing is written.
func (s *Store) AppendMessage(ctx context.Context, p AppendMessageParams) (Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, timestamp, sender, content, is_from_me, chat_jid, media_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Timestamp, p.Sender, p.Content, p.IsFromMe, p.ChatJID, p.MediaType)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return Message{}, ErrDuplicateID
			case pgForeignKeyViolation:
				return Message{}, ErrUnknownChat
			}
		}
		return Message{}, fmt.Errorf("insert message %s: %w", p.ID, err)
	}

	// The row lock taken here serializes concurrent appends within one chat;
	// appends to different chats proceed in parallel.
	_, err = tx.Exec(ctx, `
		UPDATE chats SET
			last_message_time = $2,
			last_message      = $3,
			last_sender       = $4,
			last_is_from_me   = $5
		WHERE jid = $1
		  AND (last_message_time IS NULL OR last_message_time <= $2)
	`, p.ChatJID, p.Timestamp, p.Content, p.Sender, p.IsFromMe)
	if err != nil {
		return Message{}, fmt.Errorf("update chat summary %s: %w", p.ChatJID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit append %s: %w", p.ID, err)
	}

	return Message{
		ID:        p.ID,
		Timestamp: p.Timestamp,
		Sender:    p.Sender,
		Content:   p.Content,
		IsFromMe:  p.IsFromMe,
		ChatJID:   p.ChatJID,
		MediaType: p.MediaType,
	}, nil
}

// DeleteChat removes the chat and, via the FK cascade, all of its messages.
// Returns ErrNotFound when the jid has no chat row.
func (s *Store) DeleteChat(ctx context.Context, jid string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE jid = $1`, jid)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", jid, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages returns the messages of a chat ordered by timestamp ascending
// (id breaks ties). since, when non-nil, is an inclusive lower bound; limit
// caps the result when positive.
func (s *Store) ListMessages(ctx context.Context, chatJID string, since *time.Time, limit int) ([]Message, error) {
	var resultCap any
	if limit > 0 {
		resultCap = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, sender, content, is_from_me, chat_jid, media_type
		FROM messages
		WHERE chat_jid = $1
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		ORDER BY timestamp ASC, id ASC
		LIMIT $3
	`, chatJID, since, resultCap)
	if err != nil {
		return nil, fmt.Errorf("query messages for %s: %w", chatJID, err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Sender, &m.Content, &m.IsFromMe, &m.ChatJID, &m.MediaType); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// ListChats returns chats ordered by most recent activity, chats that never
// saw a message last. limit caps the result when positive.
func (s *Store) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	var resultCap any
	if limit > 0 {
		resultCap = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT jid, name, last_message_time, last_message, last_sender, last_is_from_me
		FROM chats
		ORDER BY last_message_time DESC NULLS LAST, jid ASC
		LIMIT $1
	`, resultCap)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.JID, &c.Name, &c.LastMessageTime, &c.LastMessage, &c.LastSender, &c.LastIsFromMe); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// GetChat returns the chat for a jid, or nil when absent.
func (s *Store) GetChat(ctx context.Context, jid string) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx, `
		SELECT jid, name, last_message_time, last_message, last_sender, last_is_from_me
		FROM chats WHERE jid = $1
	`, jid).Scan(&c.JID, &c.Name, &c.LastMessageTime, &c.LastMessage, &c.LastSender, &c.LastIsFromMe)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", jid, err)
	}
	return &c, nil
}

// GetContact returns the contact for a jid, or nil when absent.
func (s *Store) GetContact(ctx context.Context, jid string) (*Contact, error) {
	var c Contact
	err := s.pool.QueryRow(ctx, `
		SELECT jid, phone_number, name FROM contacts WHERE jid = $1
	`, jid).Scan(&c.JID, &c.PhoneNumber, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %s: %w", jid, err)
	}
	return &c, nil
}

// SearchContacts returns contacts whose name or phone number contains the
// query, case-insensitively, ordered by name.
func (s *Store) SearchContacts(ctx context.Context, query string) ([]Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT jid, phone_number, name
		FROM contacts
		WHERE name ILIKE '%' || $1 || '%' OR phone_number ILIKE '%' || $1 || '%'
		ORDER BY name ASC NULLS LAST, jid ASC
	`, query)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.JID, &c.PhoneNumber, &c.Name); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
