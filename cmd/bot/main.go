// Package main contains the entrypoint for the LensBot Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/lensbot/internal/ai"
	"github.com/edgard/lensbot/internal/analysis"
	"github.com/edgard/lensbot/internal/bot"
	"github.com/edgard/lensbot/internal/bot/handlers"
	"github.com/edgard/lensbot/internal/bot/tasks"
	"github.com/edgard/lensbot/internal/config"
	"github.com/edgard/lensbot/internal/database"
	"github.com/edgard/lensbot/internal/logger"
	"github.com/edgard/lensbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, store, AI client, Telegram bot and scheduler,
// blocks until shutdown, and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	store, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("Failed to open database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	// From here on the orchestrator owns the store and closes it.
	storeOwned := false
	defer func() {
		if !storeOwned {
			if err := store.Close(); err != nil {
				log.Error("Failed to close database", "error", err)
			}
		}
	}()

	aiClient, err := ai.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	analysisSvc := analysis.NewService(analysis.Deps{
		Analyzer: aiClient,
		Store:    store,
		Logger:   log,
	}, analysis.NewSettings(cfg.Analysis, cfg.Messages))

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Store:    store,
		AI:       aiClient,
		Analysis: analysisSvc,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	cfg.Telegram.BotInfo = *me
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if _, err := tg.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: config.CommandDescriptions}); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, store, tg, sched)
	storeOwned = true

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
