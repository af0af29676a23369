// Package main contains the entrypoint for the fake chat-log bot.
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

	"github.com/edgard/aishitbot/internal/bot"
	"github.com/edgard/aishitbot/internal/bot/handlers"
	"github.com/edgard/aishitbot/internal/bot/tasks"
	"github.com/edgard/aishitbot/internal/chatlog"
	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/database"
	"github.com/edgard/aishitbot/internal/llm"
	"github.com/edgard/aishitbot/internal/logger"
	"github.com/edgard/aishitbot/internal/nickname"
	"github.com/edgard/aishitbot/internal/onebot"
	"github.com/edgard/aishitbot/internal/platform"
	"github.com/edgard/aishitbot/internal/resilience"
	"github.com/edgard/aishitbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, runs the bot until shutdown and returns the exit code.
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

	var store database.Store
	if cfg.Archive.Enabled {
		db, err := database.NewDB(cfg.Database.Path, log)
		if err != nil {
			log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
			return 1
		}
		defer database.CloseDB(db, log)
		store = database.NewStore(db, log)
	} else {
		log.Info("Generation archive disabled")
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize LLM provider", "provider", cfg.LLM.Provider, "error", err)
		return 1
	}

	var resolverOpts []nickname.Option
	if cfg.Nickname.BreakerFailures > 0 {
		resolverOpts = append(resolverOpts, nickname.WithBreaker(resilience.NewCircuitBreaker(resilience.BreakerConfig{
			Name:        "nickname",
			MaxFailures: cfg.Nickname.BreakerFailures,
			Cooldown:    cfg.Nickname.BreakerCooldown,
		}, log)))
	}
	resolver, err := nickname.NewResolver(cfg.Nickname.BaseURL, cfg.Nickname.Timeout, log, resolverOpts...)
	if err != nil {
		log.Error("Failed to initialize nickname resolver", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Generator: chatlog.NewGenerator(provider, cfg.LLM.SystemPrompt, cfg.LLM.UserPrompt, cfg.Messages.LLMFailure, log),
		Resolver:  resolver,
		Store:     store,
	}

	var hosts []platform.Host
	if cfg.OneBot.Enabled {
		hosts = append(hosts, onebot.NewHost(cfg.OneBot, log))
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewHost(cfg.Telegram, log)
		if err != nil {
			log.Error("Failed to create Telegram host", "error", err)
			return 1
		}
		hosts = append(hosts, tg)
	}
	handlers.RegisterHandlers(hosts, handlers.RegisterAllCommands(hDeps), log)

	var sched *bot.Scheduler
	if store != nil {
		sched, err = bot.NewScheduler(log, cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
			Logger: log,
			Store:  store,
			Config: cfg,
		}))
		if err != nil {
			log.Error("Failed to create scheduler", "error", err)
			return 1
		}
	}

	app := bot.NewBot(log, hosts, sched)

	log.Info("Starting bot", "command", cfg.Bot.Command, "provider", provider.Name())
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished, initiating shutdown")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully")
	return 0
}
