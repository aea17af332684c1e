package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to the database named by TEST_DATABASE_URL, applies
// the schema and starts from empty tables. Tests skip when no database is
// available.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, url)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE chats, messages, contacts`)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func strPtr(s string) *string { return &s }

func ts(sec int) time.Time {
	return time.Date(2026, 8, 26, 10, 0, sec, 0, time.UTC)
}

func appendText(t *testing.T, s *Store, id string, at time.Time, sender, text, chatJID string, fromMe bool) Message {
	t.Helper()
	m, err := s.AppendMessage(context.Background(), AppendMessageParams{
		ID:        id,
		Timestamp: at,
		Sender:    sender,
		Content:   strPtr(text),
		IsFromMe:  fromMe,
		ChatJID:   chatJID,
	})
	require.NoError(t, err)
	return m
}

func TestUpsertChatPreservesName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.UpsertChat(ctx, "123@g.us", strPtr("Team"))
	require.NoError(t, err)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Team", *c.Name)

	// Null name on the second call must not erase the first.
	c, err = s.UpsertChat(ctx, "123@g.us", nil)
	require.NoError(t, err)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Team", *c.Name)

	// A new non-null name wins.
	c, err = s.UpsertChat(ctx, "123@g.us", strPtr("Team Renamed"))
	require.NoError(t, err)
	assert.Equal(t, "Team Renamed", *c.Name)
}

func TestUpsertContactPreservesName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertContact(ctx, "491700000001@s.whatsapp.net", "491700000001", strPtr("Alice"))
	require.NoError(t, err)

	c, err := s.UpsertContact(ctx, "491700000001@s.whatsapp.net", "491700000001", nil)
	require.NoError(t, err)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Alice", *c.Name)
}

func TestContactsSharePhoneNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// phone_number is deliberately not unique: two JIDs may map to one number.
	_, err := s.UpsertContact(ctx, "491700000001@s.whatsapp.net", "491700000001", strPtr("Alice"))
	require.NoError(t, err)
	_, err = s.UpsertContact(ctx, "491700000001@lid", "491700000001", nil)
	require.NoError(t, err)

	found, err := s.SearchContacts(ctx, "491700000001")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestAppendMessageUpdatesChatSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertChat(ctx, "123@g.us", strPtr("Team"))
	require.NoError(t, err)

	appendText(t, s, "m1", ts(0), "alice", "hi", "123@g.us", false)

	chat, err := s.GetChat(ctx, "123@g.us")
	require.NoError(t, err)
	require.NotNil(t, chat)
	require.NotNil(t, chat.LastMessage)
	assert.Equal(t, "hi", *chat.LastMessage)
	assert.Equal(t, "alice", *chat.LastSender)
	assert.False(t, *chat.LastIsFromMe)
	assert.True(t, chat.LastMessageTime.Equal(ts(0)))
}

func TestAppendMessageOlderTimestampKeepsSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertChat(ctx, "123@g.us", nil)
	require.NoError(t, err)

	appendText(t, s, "m-new", ts(30), "alice", "newest", "123@g.us", false)
	appendText(t, s, "m-old", ts(10), "bob", "backfill", "123@g.us", false)

	chat, err := s.GetChat(ctx, "123@g.us")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, "newest", *chat.LastMessage)
	assert.Equal(t, "alice", *chat.LastSender)
	assert.True(t, chat.LastMessageTime.Equal(ts(30)))
}

func TestAppendMessageDuplicateIDNoPartialWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertChat(ctx, "123@g.us", nil)
	require.NoError(t, err)
	_, err = s.UpsertChat(ctx, "456@g.us", nil)
	require.NoError(t, err)

	appendText(t, s, "m1", ts(0), "alice", "hi", "123@g.us", false)

	// Same id, different chat and later timestamp: the whole append must fail.
	_, err = s.AppendMessage(ctx, AppendMessageParams{
		ID:        "m1",
		Timestamp: ts(60),
		Sender:    "bob",
		Content:   strPtr("again"),
		IsFromMe:  false,
		ChatJID:   "456@g.us",
	})
	assert.ErrorIs(t, err, ErrDuplicateID)

	msgs, err := s.ListMessages(ctx, "456@g.us", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	other, err := s.GetChat(ctx, "456@g.us")
	require.NoError(t, err)
	assert.Nil(t, other.LastMessageTime)
}

func TestAppendMessageUnknownChat(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendMessage(context.Background(), AppendMessageParams{
		ID:        "m1",
		Timestamp: ts(0),
		Sender:    "alice",
		Content:   strPtr("hi"),
		ChatJID:   "nobody@g.us",
	})
	assert.ErrorIs(t, err, ErrUnknownChat)
}

func TestListMessagesOrderSinceLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertChat(ctx, "123@g.us", nil)
	require.NoError(t, err)

	// Inserted out of order on purpose.
	appendText(t, s, "m3", ts(30), "alice", "three", "123@g.us", false)
	appendText(t, s, "m1", ts(10), "alice", "one", "123@g.us", false)
	appendText(t, s, "m2", ts(20), "bob", "two", "123@g.us", true)

	msgs, err := s.ListMessages(ctx, "123@g.us", nil, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}

	since := ts(20)
	msgs, err = s.ListMessages(ctx, "123@g.us", &since, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID)

	msgs, err = s.ListMessages(ctx, "123@g.us", nil, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestDeleteChatCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertChat(ctx, "123@g.us", nil)
	require.NoError(t, err)
	appendText(t, s, "m1", ts(0), "alice", "hi", "123@g.us", false)
	appendText(t, s, "m2", ts(1), "bob", "yo", "123@g.us", false)

	require.NoError(t, s.DeleteChat(ctx, "123@g.us"))

	chat, err := s.GetChat(ctx, "123@g.us")
	require.NoError(t, err)
	assert.Nil(t, chat)

	msgs, err := s.ListMessages(ctx, "123@g.us", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeleteChatMissing(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.DeleteChat(context.Background(), "nobody@g.us"), ErrNotFound)
}

func TestGetMisses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat, err := s.GetChat(ctx, "nobody@g.us")
	require.NoError(t, err)
	assert.Nil(t, chat)

	contact, err := s.GetContact(ctx, "nobody@s.whatsapp.net")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestListChatsRecencyOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, jid := range []string{"a@g.us", "b@g.us", "c@g.us"} {
		_, err := s.UpsertChat(ctx, jid, nil)
		require.NoError(t, err)
	}
	appendText(t, s, "m1", ts(10), "x", "old", "a@g.us", false)
	appendText(t, s, "m2", ts(20), "x", "new", "b@g.us", false)

	chats, err := s.ListChats(ctx, 0)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "b@g.us", chats[0].JID)
	assert.Equal(t, "a@g.us", chats[1].JID)
	// Never-active chat sorts last.
	assert.Equal(t, "c@g.us", chats[2].JID)
}

func TestSearchContactsByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertContact(ctx, "1@s.whatsapp.net", "491700000001", strPtr("Alice Smith"))
	require.NoError(t, err)
	_, err = s.UpsertContact(ctx, "2@s.whatsapp.net", "491700000002", strPtr("Bob"))
	require.NoError(t, err)

	found, err := s.SearchContacts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "1@s.whatsapp.net", found[0].JID)
}

func TestConcurrentAppendsDifferentChats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jids := []string{"one@g.us", "two@g.us"}
	for _, jid := range jids {
		_, err := s.UpsertChat(ctx, jid, nil)
		require.NoError(t, err)
	}

	const perChat = 20
	var wg sync.WaitGroup
	errs := make(chan error, len(jids)*perChat)
	for _, jid := range jids {
		for i := 0; i < perChat; i++ {
			wg.Add(1)
			go func(jid string, i int) {
				defer wg.Done()
				_, err := s.AppendMessage(ctx, AppendMessageParams{
					ID:        fmt.Sprintf("%s-%d", jid, i),
					Timestamp: ts(i),
					Sender:    jid,
					Content:   strPtr(fmt.Sprintf("msg %d", i)),
					ChatJID:   jid,
				})
				errs <- err
			}(jid, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, jid := range jids {
		msgs, err := s.ListMessages(ctx, jid, nil, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, perChat)

		chat, err := s.GetChat(ctx, jid)
		require.NoError(t, err)
		require.NotNil(t, chat)
		// Each summary reflects only its own newest message.
		assert.Equal(t, jid, *chat.LastSender)
		assert.True(t, chat.LastMessageTime.Equal(ts(perChat-1)))
		assert.Equal(t, fmt.Sprintf("msg %d", perChat-1), *chat.LastMessage)
	}
}
