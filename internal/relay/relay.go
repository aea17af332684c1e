package relay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/babelbridge/internal/metrics"
	"github.com/your-org/babelbridge/internal/processor"
	"github.com/your-org/babelbridge/internal/store"
	"github.com/your-org/babelbridge/internal/translator"
)

// Store is the persistence surface the relay needs.
type Store interface {
	UpsertChat(ctx context.Context, jid string, name *string) (store.Chat, error)
	UpsertContact(ctx context.Context, jid, phoneNumber string, name *string) (store.Contact, error)
	AppendMessage(ctx context.Context, p store.AppendMessageParams) (store.Message, error)
}

// Translator turns inbound content into text in the target language and
// synthesizes speech for voice replies.
type Translator interface {
	TranslateText(ctx context.Context, text, targetLanguage string) (string, error)
	TranslateAudio(ctx context.Context, audio []byte, targetLanguage string) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Bridge is the outbound side of the external bridge process.
type Bridge interface {
	SendText(ctx context.Context, chatJID, text string) error
	SendVoice(ctx context.Context, chatJID string, audio []byte) error
	DownloadMedia(ctx context.Context, messageID, chatJID string) ([]byte, error)
}

// Event is a normalized inbound notification from the bridge.
type Event struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ChatJID   string    `json:"chat_jid"`
	ChatName  *string   `json:"chat_name"`
	IsFromMe  bool      `json:"is_from_me"`
	MediaType *string   `json:"media_type"`
}

// Relay ties the webhook receiver to the translator, the store and the
// outbound bridge: persist inbound, translate, send back, persist outbound.
type Relay struct {
	store      Store
	translator Translator
	bridge     Bridge
	log        *zap.Logger

	targetLanguage   string
	selfJID          string
	translateTimeout time.Duration
}

// New wires a Relay. translateTimeout bounds one translation (download,
// transcription and completion included).
func New(st Store, tr Translator, br Bridge, log *zap.Logger, targetLanguage, selfJID string, translateTimeout time.Duration) *Relay {
	return &Relay{
		store:            st,
		translator:       tr,
		bridge:           br,
		log:              log,
		targetLanguage:   targetLanguage,
		selfJID:          selfJID,
		translateTimeout: translateTimeout,
	}
}

// Sender JIDs that carry a phone number in the local part.
var phoneJIDRe = regexp.MustCompile(`^(\d+)(?::\d+)?@(?:s\.whatsapp\.net|c\.us|lid)$`)

func extractPhone(jid string) (string, bool) {
	m := phoneJIDRe.FindStringSubmatch(jid)
	if len(m) == 2 {
		return m[1], true
	}
	return "", false
}

const mediaTypeAudio = "audio"

// ProcessInbound persists one inbound event and, for translatable inbound
// messages, relays the translation back through the bridge. It returns an
// error only when the inbound message could not be persisted; every
// downstream failure (translation, send, outbound persist) is logged and
// counted but does not fail the webhook, which always acks.
func (r *Relay) ProcessInbound(ctx context.Context, ev Event) error {
	content := processor.SanitizeText(ev.Content)

	chat, err := r.store.UpsertChat(ctx, ev.ChatJID, ev.ChatName)
	if err != nil {
		metrics.StoreFailures.Inc()
		return fmt.Errorf("upsert chat: %w", err)
	}

	if phone, ok := extractPhone(ev.Sender); ok {
		// Contact rows are best-effort; chat history does not depend on them.
		// In a direct chat the chat name is the sender's display name; in a
		// group it is the group subject, which tells us nothing about the
		// sender.
		var contactName *string
		if !chat.IsGroup() && ev.Sender == ev.ChatJID {
			contactName = ev.ChatName
		}
		if _, err := r.store.UpsertContact(ctx, ev.Sender, phone, contactName); err != nil {
			metrics.StoreFailures.Inc()
			r.log.Warn("upsert contact failed", zap.String("jid", ev.Sender), zap.Error(err))
		}
	}

	var contentPtr *string
	if content != "" {
		contentPtr = &content
	}
	_, err = r.store.AppendMessage(ctx, store.AppendMessageParams{
		ID:        ev.MessageID,
		Timestamp: ev.Timestamp,
		Sender:    ev.Sender,
		Content:   contentPtr,
		IsFromMe:  ev.IsFromMe,
		ChatJID:   ev.ChatJID,
		MediaType: ev.MediaType,
	})
	if errors.Is(err, store.ErrDuplicateID) {
		// Redelivery of an event we already handled; ack without re-translating.
		r.log.Debug("duplicate delivery", zap.String("message_id", ev.MessageID))
		return nil
	}
	if err != nil {
		metrics.StoreFailures.Inc()
		return fmt.Errorf("append inbound message: %w", err)
	}
	metrics.EventsReceived.Inc()

	if ev.IsFromMe || !r.translatable(ev, content) {
		return nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.translateTimeout)
	defer cancel()

	translated, err := r.translate(tctx, ev, content)
	if err != nil {
		metrics.TranslationFailures.Inc()
		r.log.Warn("translation failed, skipping",
			zap.String("message_id", ev.MessageID),
			zap.String("chat_jid", ev.ChatJID),
			zap.Error(err))
		return nil
	}

	replyMedia, err := r.deliver(ctx, ev, translated)
	if err != nil {
		metrics.BridgeSendFailures.Inc()
		r.log.Error("bridge send failed",
			zap.String("chat_jid", ev.ChatJID),
			zap.Error(err))
		return nil
	}
	metrics.MessagesRelayed.Inc()

	if _, err := r.appendOutbound(ctx, ev.ChatJID, translated, replyMedia); err != nil {
		metrics.StoreFailures.Inc()
		r.log.Error("persist outbound failed",
			zap.String("chat_jid", ev.ChatJID),
			zap.Error(err))
	}
	return nil
}

// SendOutbound delivers text to a chat on behalf of the account and persists
// the sent message. Used by the manual send API.
func (r *Relay) SendOutbound(ctx context.Context, chatJID, text string) (store.Message, error) {
	if _, err := r.store.UpsertChat(ctx, chatJID, nil); err != nil {
		metrics.StoreFailures.Inc()
		return store.Message{}, fmt.Errorf("upsert chat: %w", err)
	}
	if err := r.bridge.SendText(ctx, chatJID, text); err != nil {
		metrics.BridgeSendFailures.Inc()
		return store.Message{}, fmt.Errorf("bridge send: %w", err)
	}
	metrics.MessagesRelayed.Inc()
	msg, err := r.appendOutbound(ctx, chatJID, text, nil)
	if err != nil {
		metrics.StoreFailures.Inc()
		return store.Message{}, fmt.Errorf("append outbound message: %w", err)
	}
	return msg, nil
}

// deliver sends the translation back through the bridge. Voice notes get a
// voice reply: the translation is synthesized and sent as audio, falling back
// to plain text when synthesis or the voice send fails. The returned media
// type is how the reply actually went out.
func (r *Relay) deliver(ctx context.Context, ev Event, translated string) (*string, error) {
	if ev.MediaType != nil && *ev.MediaType == mediaTypeAudio {
		audio, err := r.translator.Speak(ctx, translated)
		if err == nil {
			if err = r.bridge.SendVoice(ctx, ev.ChatJID, audio); err == nil {
				mt := mediaTypeAudio
				return &mt, nil
			}
		}
		r.log.Warn("voice reply failed, falling back to text",
			zap.String("chat_jid", ev.ChatJID),
			zap.Error(err))
	}
	return nil, r.bridge.SendText(ctx, ev.ChatJID, translated)
}

func (r *Relay) appendOutbound(ctx context.Context, chatJID, text string, mediaType *string) (store.Message, error) {
	return r.store.AppendMessage(ctx, store.AppendMessageParams{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Sender:    r.selfJID,
		Content:   &text,
		IsFromMe:  true,
		ChatJID:   chatJID,
		MediaType: mediaType,
	})
}

// translatable reports whether the event carries content we can translate:
// plain text, or a voice note we can transcribe. Images and documents are
// persisted but not relayed.
func (r *Relay) translatable(ev Event, content string) bool {
	if ev.MediaType == nil {
		return content != ""
	}
	return *ev.MediaType == mediaTypeAudio
}

func (r *Relay) translate(ctx context.Context, ev Event, content string) (string, error) {
	if ev.MediaType != nil && *ev.MediaType == mediaTypeAudio {
		audio, err := r.bridge.DownloadMedia(ctx, ev.MessageID, ev.ChatJID)
		if err != nil {
			return "", fmt.Errorf("%w: download media: %v", translator.ErrUnavailable, err)
		}
		return r.translator.TranslateAudio(ctx, audio, r.targetLanguage)
	}
	return r.translator.TranslateText(ctx, content, r.targetLanguage)
}
