// Package telegram implements a platform.Host on top of the go-telegram/bot library.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/logger"
	"github.com/edgard/aishitbot/internal/platform"
)

// Name is the platform name reported in requests.
const Name = "telegram"

// Host serves commands to Telegram chats. Forwarded node lists have no
// Telegram equivalent and are rendered as HTML messages instead.
type Host struct {
	bot      *bot.Bot
	log      *slog.Logger
	handlers sync.WaitGroup
}

// NewHost creates the Telegram bot instance. Extra options are passed to bot.New.
func NewHost(cfg config.TelegramConfig, log *slog.Logger, opts ...bot.Option) (*Host, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	log = log.With("component", "telegram")

	opts = append([]bot.Option{
		bot.WithDefaultHandler(func(context.Context, *bot.Bot, *models.Update) {}),
		bot.WithMiddlewares(logger.Middleware(log)),
	}, opts...)

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(cfg.Token))
	return &Host{bot: b, log: log}, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}

// Name implements platform.Host.
func (h *Host) Name() string { return Name }

// OnCommand registers fn for messages starting with /name. Each invocation
// runs in its own goroutine so a slow command does not stall the update loop.
func (h *Host) OnCommand(name string, fn platform.CommandFunc) {
	match := func(update *models.Update) bool {
		return update.Message != nil && matchCommand(update.Message.Text, name)
	}

	h.bot.RegisterHandlerMatchFunc(match, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		msg := update.Message
		req := platform.Request{
			Platform: Name,
			ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
			Text:     msg.Text,
		}
		if msg.From != nil {
			req.UserID = msg.From.ID
		}
		h.log.InfoContext(ctx, "Command received", "command", name, "chat_id", req.ChatID, "user_id", req.UserID)

		reply := &replier{bot: b, chatID: msg.Chat.ID}
		h.handlers.Add(1)
		go func() {
			defer h.handlers.Done()
			fn(ctx, req, reply)
		}()
	})
	h.log.Debug("Registered command", "command", name)
}

// Run polls for updates until ctx is cancelled, then waits for running commands.
func (h *Host) Run(ctx context.Context) error {
	h.log.InfoContext(ctx, "Starting Telegram host")
	h.bot.Start(ctx)
	h.handlers.Wait()
	h.log.InfoContext(ctx, "Telegram host stopped")
	return nil
}

// matchCommand accepts "/name", "/name@botname" and "/name args".
func matchCommand(text, name string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), "/"+name)
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '@' || rest[0] == ' ' || rest[0] == '\n' || rest[0] == '\t'
}

type replier struct {
	bot    *bot.Bot
	chatID int64
}

func (r *replier) Text(ctx context.Context, text string) error {
	_, err := r.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: r.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (r *replier) Nodes(ctx context.Context, nodes []platform.Node) error {
	for _, text := range RenderNodes(nodes, MaxMessageLength) {
		_, err := r.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    r.chatID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			return fmt.Errorf("failed to send rendered nodes: %w", err)
		}
	}
	return nil
}
