package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"

	"github.com/raulbalestra/helovox/pkg/assembler"
	"github.com/raulbalestra/helovox/pkg/classifier"
	"github.com/raulbalestra/helovox/pkg/converter"
	"github.com/raulbalestra/helovox/pkg/database"
	"github.com/raulbalestra/helovox/pkg/domain"
	"github.com/raulbalestra/helovox/pkg/elevenlabs"
	"github.com/raulbalestra/helovox/pkg/logger"
	"github.com/raulbalestra/helovox/pkg/openai"
	"github.com/raulbalestra/helovox/pkg/repository"
	"github.com/raulbalestra/helovox/pkg/services"
	"github.com/raulbalestra/helovox/pkg/whatsapp"
	"github.com/raulbalestra/helovox/pkg/workers"
)

type Config struct {
	OpenAIToken       string        `env:"OPENAI_API_KEY,required"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo"`
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	SessionDBPath     string        `env:"WHATSAPP_SESSION_PATH" envDefault:"helovox-session.db"`
	DeviceName        string        `env:"WHATSAPP_DEVICE_NAME" envDefault:"Helovox"`
	MentionKeyword    string        `env:"MENTION_KEYWORD" envDefault:"helovox"`
	ConfirmKeyword    string        `env:"CONFIRM_KEYWORD" envDefault:"descrever"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"10"`
	MaxTokens         int           `env:"GENERATION_MAX_TOKENS" envDefault:"3000"`
	Temperature       float64       `env:"GENERATION_TEMPERATURE" envDefault:"0.5"`
	CallTimeout       time.Duration `env:"EXTERNAL_CALL_TIMEOUT" envDefault:"60s"`
	ElevenLabsAPIKey  string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string        `env:"ELEVENLABS_VOICE_ID"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	workerGroup, err := setupWorkers()
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	return workerGroup.Start(ctx)
}

func setupWorkers() (workers.Group, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	var worker workers.Worker
	var workerGroup workers.Group

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating db: %w", err)
	}

	openAIClient, err := openai.NewClient(cfg.OpenAIToken, cfg.OpenAIModel)
	if err != nil {
		return nil, fmt.Errorf("creating open ai client: %w", err)
	}

	var synthesizer services.SpeechSynthesizer
	if cfg.ElevenLabsAPIKey != "" && cfg.ElevenLabsVoiceID != "" {
		synthesizer, err = elevenlabs.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
		if err != nil {
			return nil, fmt.Errorf("creating eleven labs client: %w", err)
		}
		slog.Info("voice replies enabled")
	}

	whatsappClient := whatsapp.NewClient(whatsapp.Config{
		DatabasePath: cfg.SessionDBPath,
		DeviceName:   cfg.DeviceName,
	})

	conversationRepository := repository.NewConversationRepository(db)

	dispatcher := services.NewDispatcher(
		classifier.New(cfg.MentionKeyword, cfg.ConfirmKeyword),
		assembler.New(conversationRepository, cfg.HistoryLimit),
		openAIClient,
		conversationRepository,
		&converter.VoiceToMP3{},
		whatsappClient,
		synthesizer,
		domain.GenerateOptions{
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		},
		cfg.CallTimeout,
	)

	if worker, err = workers.NewWhatsAppClient(whatsappClient); err == nil {
		workerGroup = append(workerGroup, worker)
	} else {
		return nil, err
	}

	if worker, err = workers.NewMessageListener(whatsappClient, dispatcher); err == nil {
		workerGroup = append(workerGroup, worker)
	} else {
		return nil, err
	}

	return workerGroup, nil
}
