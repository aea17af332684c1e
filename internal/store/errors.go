package store

import "errors"

var (
	// ErrDuplicateID is returned by AppendMessage when the message id is
	// already present. Ids are unique across the whole table, not per chat.
	ErrDuplicateID = errors.New("message id already exists")

	// ErrUnknownChat is returned by AppendMessage when chat_jid references no
	// chat row. Callers upsert the chat first; the store never auto-creates.
	ErrUnknownChat = errors.New("chat does not exist")

	// ErrNotFound is returned by DeleteChat when the jid has no chat row.
	ErrNotFound = errors.New("not found")
)
