package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/babelbridge")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BRIDGE_BASE_URL", "http://localhost:9090")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIChatModel)
	assert.Equal(t, "whisper-1", cfg.OpenAITranscribeModel)
	assert.Equal(t, "tts-1", cfg.OpenAISpeechModel)
	assert.Equal(t, "alloy", cfg.SpeechVoice)
	assert.Equal(t, "English", cfg.TargetLanguage)
	assert.Equal(t, "me", cfg.SelfJID)
	assert.Equal(t, 45*time.Second, cfg.TranslateTimeout)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TARGET_LANGUAGE", "German")
	t.Setenv("TRANSLATE_TIMEOUT_SECONDS", "10")
	t.Setenv("SELF_JID", "491700000009@s.whatsapp.net")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "German", cfg.TargetLanguage)
	assert.Equal(t, 10*time.Second, cfg.TranslateTimeout)
	assert.Equal(t, "491700000009@s.whatsapp.net", cfg.SelfJID)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
