package store

// schemaSQL is the persisted contract. Existing deployments depend on this
// exact layout, so changes here are migrations, not refactors.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS chats (
  jid TEXT PRIMARY KEY,
  name TEXT NULL,
  last_message_time TIMESTAMPTZ NULL,
  last_message TEXT NULL,
  last_sender TEXT NULL,
  last_is_from_me BOOLEAN NULL
);

CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  timestamp TIMESTAMPTZ NOT NULL,
  sender TEXT NOT NULL,
  content TEXT NULL,
  is_from_me BOOLEAN NOT NULL,
  chat_jid TEXT NOT NULL REFERENCES chats(jid) ON DELETE CASCADE,
  media_type TEXT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_jid ON messages (chat_jid);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp);

CREATE TABLE IF NOT EXISTS contacts (
  jid TEXT PRIMARY KEY,
  phone_number TEXT NOT NULL,
  name TEXT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts (phone_number);
`
