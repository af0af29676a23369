package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/aishitbot/internal/config"
	"github.com/edgard/aishitbot/internal/database"
)

// Generator produces a raw fake chat log completion.
type Generator interface {
	Generate(ctx context.Context) (string, error)
}

// NicknameResolver maps a QQ number to a display name. It never fails.
type NicknameResolver interface {
	Resolve(ctx context.Context, id string) string
}

// HandlerDeps provides dependencies for command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Generator Generator
	Resolver  NicknameResolver
	// Store archives generations. Nil disables archiving.
	Store database.Store
}
