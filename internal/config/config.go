package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	Addr        string
	DatabaseURL string

	OpenAIAPIKey          string
	OpenAIChatModel       string
	OpenAITranscribeModel string
	OpenAISpeechModel     string
	SpeechVoice           string
	TargetLanguage        string

	BridgeBaseURL string
	BridgeToken   string

	// SelfJID is recorded as the sender on outbound message rows.
	SelfJID string

	TranslateTimeout time.Duration
}

// getenv returns the env var value or a default.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

// Load reads the configuration and validates required variables.
func Load() (Config, error) {
	cfg := Config{
		Addr:        getenv("APP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIChatModel:       getenv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAITranscribeModel: getenv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		OpenAISpeechModel:     getenv("OPENAI_SPEECH_MODEL", "tts-1"),
		SpeechVoice:           getenv("SPEECH_VOICE", "alloy"),
		TargetLanguage:        getenv("TARGET_LANGUAGE", "English"),

		BridgeBaseURL: os.Getenv("BRIDGE_BASE_URL"),
		BridgeToken:   os.Getenv("BRIDGE_TOKEN"),

		SelfJID: getenv("SELF_JID", "me"),

		TranslateTimeout: time.Duration(getenvInt("TRANSLATE_TIMEOUT_SECONDS", 45)) * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.BridgeBaseURL == "" {
		return Config{}, fmt.Errorf("BRIDGE_BASE_URL is required")
	}
	return cfg, nil
}
