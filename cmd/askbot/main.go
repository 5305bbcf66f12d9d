package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaluza-tech/askbot/internal/announce"
	"github.com/kaluza-tech/askbot/internal/answerlog"
	"github.com/kaluza-tech/askbot/internal/api"
	"github.com/kaluza-tech/askbot/internal/bot"
	"github.com/kaluza-tech/askbot/internal/cache"
	"github.com/kaluza-tech/askbot/internal/composer"
	"github.com/kaluza-tech/askbot/internal/config"
	"github.com/kaluza-tech/askbot/internal/integrations"
	"github.com/kaluza-tech/askbot/internal/knowledge"
	"github.com/kaluza-tech/askbot/internal/llm"
	"github.com/kaluza-tech/askbot/internal/retrieval"
	"github.com/kaluza-tech/askbot/internal/slack"
)

func main() {
	cfg, err := config.Load(os.Getenv("ASKBOT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("askbot starting", "port", cfg.Port, "provider", cfg.Provider, "test_mode", cfg.TestMode)
	if cfg.TestMode {
		slog.Info("test mode enabled: listening in test channels, reading history from production channels")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Slack Web API client; resolve our own user id once so mention
	// stripping never needs a per-event auth call.
	slackClient := slack.NewClient(cfg.SlackBotToken, slog.Default())
	botUserID, err := slackClient.AuthTest(ctx)
	if err != nil {
		slog.Error("slack auth failed", "error", err)
		os.Exit(1)
	}
	slog.Info("slack authenticated", "bot_user_id", botUserID)

	// LLM provider
	provider, err := llm.New(cfg.Provider, cfg.APIKey(), cfg.Model)
	if err != nil {
		slog.Error("failed to build llm provider", "error", err)
		os.Exit(1)
	}
	slog.Info("llm provider ready", "provider", provider.Name(), "model", cfg.Model)

	// Knowledge base
	kb, err := knowledge.Load()
	if err != nil {
		slog.Error("failed to load knowledge base", "error", err)
		os.Exit(1)
	}
	slog.Info("knowledge base loaded", "domains", len(kb.Domains()))

	// Channel table and history cache. The first refresh blocks so the
	// bot never answers from an empty cache.
	channels := bot.Channels(cfg)
	sources := bot.HistorySources(channels)
	historyCache := cache.New(slackClient, sources, cfg.HistoryWindow(), slog.Default())

	slog.Info("priming history cache", "channels", sources)
	historyCache.RefreshAll(ctx)
	historyCache.Start(ctx, cfg.RefreshInterval)

	retriever := retrieval.New(historyCache, slackClient, cfg.HistoryWindow(), slog.Default())
	answerer := composer.NewAnswerer(provider, slog.Default())

	b := bot.New(channels, botUserID, retriever, kb, answerer, slackClient, slog.Default())

	// Navan enrichment (optional, currently a stub behind a flag)
	if cfg.NavanEnabled {
		b.WithEnricher(integrations.NewNavan(cfg.NavanAPIKey, cfg.NavanAPISecret))
		slog.Info("navan enrichment enabled")
	}

	// Answer log (optional)
	var answerLog *answerlog.Log
	if cfg.DatabaseURL != "" {
		answerLog, err = answerlog.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer answerLog.Close()
		if err := answerLog.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure answer log schema", "error", err)
			os.Exit(1)
		}
		b.WithRecorder(answerLog)
		slog.Info("answer log connected")
	}

	// NATS announcer (optional)
	var announcer *announce.Client
	if cfg.NatsURL != "" {
		announcer, err = announce.New(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer announcer.Close()
		b.WithAnnouncer(announcer)
		slog.Info("NATS connected", "url", cfg.NatsURL)

		if err := announcer.Publish(announce.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"provider":  cfg.Provider,
			"test_mode": cfg.TestMode,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	// HTTP API
	var answers api.AnswerSource
	if answerLog != nil {
		answers = answerLog
	}
	srv := api.NewServer(cfg.Port, cfg.Provider, sources, historyCache, answers, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("http server error", "error", err)
		}
	}()

	// Socket Mode listener
	socket := slack.NewSocketClient(cfg.SlackAppToken, slog.Default())
	go func() {
		if err := socket.Run(ctx, b.HandleMention); err != nil && ctx.Err() == nil {
			slog.Error("socket mode listener stopped", "error", err)
			cancel()
		}
	}()

	slog.Info("askbot ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-ctx.Done():
	}
	cancel()
	slog.Info("askbot stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
