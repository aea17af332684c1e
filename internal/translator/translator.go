package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable wraps every provider failure: transport errors, timeouts,
// non-2xx responses and empty completions. Callers treat it as non-fatal.
var ErrUnavailable = errors.New("translation unavailable")

const defaultBaseURL = "https://api.openai.com"

const systemPromptFormat = `You are a translation assistant for WhatsApp conversations.
Translate the user's message into %s. Keep the tone, register and formatting
of the original (contractions, emoji, line breaks). Return only the translated
message, with no commentary, quotes or explanations.`

// Client wraps the HTTP calls to the LLM provider for text translation,
// voice-note transcription and speech synthesis. It is stateless; one
// instance serves all chats.
type Client struct {
	apiKey          string
	chatModel       string
	transcribeModel string
	speechModel     string
	voice           string
	baseURL         string
	http            *http.Client
}

// New returns a Client for the hosted provider API.
func New(apiKey, chatModel, transcribeModel string) *Client {
	return &Client{
		apiKey:          apiKey,
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
		speechModel:     "tts-1",
		voice:           "alloy",
		baseURL:         defaultBaseURL,
		http:            &http.Client{Timeout: 60 * time.Second},
	}
}

// WithSpeech overrides the speech synthesis model and voice.
func (c *Client) WithSpeech(model, voice string) *Client {
	if model != "" {
		c.speechModel = model
	}
	if voice != "" {
		c.voice = voice
	}
	return c
}

// WithBaseURL points the client at a different API host.
func (c *Client) WithBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
	return c
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.http.Do(req)
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// TranslateText translates text into targetLanguage and returns only the
// translated message. Failures wrap ErrUnavailable.
func (c *Client) TranslateText(ctx context.Context, text, targetLanguage string) (string, error) {
	body, _ := json.Marshal(chatCompletionRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptFormat, targetLanguage)},
			{Role: "user", Content: text},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	var cr chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// Transcribe converts a voice note into text via the transcription endpoint.
// filename hints the container format to the provider ("voice.ogg").
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: build multipart: %v", ErrUnavailable, err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("%w: build multipart: %v", ErrUnavailable, err)
	}
	_ = mw.WriteField("model", c.transcribeModel)
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: build multipart: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	var tr struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(tr.Text), nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Speak synthesizes spoken audio (mp3) for text, used for voice-note replies.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	body, _ := json.Marshal(speechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "mp3",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrUnavailable)
	}
	return data, nil
}

// TranslateAudio transcribes a voice note and translates the transcript.
func (c *Client) TranslateAudio(ctx context.Context, audio []byte, targetLanguage string) (string, error) {
	transcript, err := c.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		return "", err
	}
	if transcript == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrUnavailable)
	}
	return c.TranslateText(ctx, transcript, targetLanguage)
}
