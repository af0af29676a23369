package handlers

import (
	"log/slog"

	"github.com/edgard/aishitbot/internal/platform"
)

// RegisteredHandler is a command handler with the middleware wrapped around it.
type RegisteredHandler struct {
	Command    string
	Handler    platform.CommandFunc
	Middleware []Middleware
}

// RegisterAllCommands returns every bot command keyed by its trigger text.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := deps.Config.Bot.Command
	handlers[command] = RegisteredHandler{
		Command: command,
		Handler: NewFakeChatHandler(deps),
		// Recover must stay outermost so it also catches panics in Timeout.
		Middleware: []Middleware{Recover(deps), Timeout(deps.Config.Bot.CommandTimeout)},
	}

	return handlers
}

// applyMiddleware wraps handler so the first middleware in mw is the outermost.
func applyMiddleware(handler platform.CommandFunc, mw []Middleware) platform.CommandFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every handler on every host.
func RegisterHandlers(hosts []platform.Host, registered map[string]RegisteredHandler, logger *slog.Logger) {
	log := logger.With("component", "handler_registry")

	if len(registered) == 0 {
		log.Warn("No handlers provided for registration")
		return
	}

	for _, host := range hosts {
		for _, reg := range registered {
			if reg.Handler == nil {
				log.Warn("Skipping registration for nil handler", "command", reg.Command)
				continue
			}
			host.OnCommand(reg.Command, applyMiddleware(reg.Handler, reg.Middleware))
			log.Debug("Registered handler", "host", host.Name(), "command", reg.Command, "middleware_count", len(reg.Middleware))
		}
		log.Info("Registered command handlers", "host", host.Name(), "count", len(registered))
	}
}
