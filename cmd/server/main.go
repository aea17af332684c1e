package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/your-org/babelbridge/internal/bridge"
	"github.com/your-org/babelbridge/internal/config"
	"github.com/your-org/babelbridge/internal/handlers"
	"github.com/your-org/babelbridge/internal/relay"
	"github.com/your-org/babelbridge/internal/store"
	"github.com/your-org/babelbridge/internal/translator"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}

	br := bridge.New(cfg.BridgeBaseURL, cfg.BridgeToken)
	tr := translator.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAITranscribeModel).
		WithSpeech(cfg.OpenAISpeechModel, cfg.SpeechVoice)
	rl := relay.New(st, tr, br, logger, cfg.TargetLanguage, cfg.SelfJID, cfg.TranslateTimeout)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewServer(rl, st, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
