package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the external WhatsApp bridge process over its REST API.
// The bridge owns the wire protocol; this client only knows the send and
// download contracts.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a Client for the bridge at baseURL. token may be empty when the
// bridge runs without authentication.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendVoiceRequest struct {
	Recipient string `json:"recipient"`
	Audio     string `json:"audio"`
}

// SendText asks the bridge to deliver a text message to the given chat JID.
func (c *Client) SendText(ctx context.Context, chatJID, text string) error {
	body, _ := json.Marshal(sendRequest{Recipient: chatJID, Message: text})
	return c.postSend(ctx, "/api/send", body, chatJID)
}

// SendVoice asks the bridge to deliver audio as a voice note. The bytes travel
// base64-encoded; the bridge converts them to the voice-note container itself.
func (c *Client) SendVoice(ctx context.Context, chatJID string, audio []byte) error {
	body, _ := json.Marshal(sendVoiceRequest{
		Recipient: chatJID,
		Audio:     base64.StdEncoding.EncodeToString(audio),
	})
	return c.postSend(ctx, "/api/send/voice", body, chatJID)
}

func (c *Client) postSend(ctx context.Context, path string, body []byte, chatJID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", chatJID, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode > 299 {
		return fmt.Errorf("send to %s: status %d: %s", chatJID, resp.StatusCode, string(raw))
	}

	// An explicit success:false is a refusal even when the bridge gives no
	// reason; a body without the field is not.
	var sr struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &sr); err == nil && sr.Success != nil && !*sr.Success {
		if sr.Message == "" {
			sr.Message = "no reason given"
		}
		return fmt.Errorf("send to %s: bridge refused: %s", chatJID, sr.Message)
	}
	return nil
}

type downloadRequest struct {
	MessageID string `json:"message_id"`
	ChatJID   string `json:"chat_jid"`
}

// DownloadMedia fetches the raw media bytes attached to a message. The bridge
// resolves and decrypts the attachment itself; we only receive the payload.
func (c *Client) DownloadMedia(ctx context.Context, messageID, chatJID string) ([]byte, error) {
	body, _ := json.Marshal(downloadRequest{MessageID: messageID, ChatJID: chatJID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/download", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", messageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("download %s: status %d: %s", messageID, resp.StatusCode, string(raw))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: read body: %w", messageID, err)
	}
	return data, nil
}
