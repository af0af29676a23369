// Package handlers contains the bot command handlers, along with their
// registration logic and middleware.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/aishitbot/internal/platform"
)

// failureReplyTimeout bounds a reply sent after the command context has ended.
const failureReplyTimeout = 10 * time.Second

// Middleware wraps a command handler.
type Middleware func(next platform.CommandFunc) platform.CommandFunc

// Recover stops a panicking handler from taking the host down and reports
// the panic to the chat with the failure prefix.
func Recover(deps HandlerDeps) Middleware {
	return func(next platform.CommandFunc) platform.CommandFunc {
		return func(ctx context.Context, req platform.Request, reply platform.Replier) {
			defer func() {
				if r := recover(); r != nil {
					log := deps.Logger.With("middleware", "Recover")
					log.ErrorContext(ctx, "Command handler panicked", "panic", r, "platform", req.Platform, "chat_id", req.ChatID)
					replyDetached(ctx, log, reply, deps.Config.Messages.FailurePrefix+fmt.Sprint(r))
				}
			}()
			next(ctx, req, reply)
		}
	}
}

// Timeout bounds the handler context by d. A zero d leaves it unbounded.
func Timeout(d time.Duration) Middleware {
	return func(next platform.CommandFunc) platform.CommandFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req platform.Request, reply platform.Replier) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			next(ctx, req, reply)
		}
	}
}

// replyDetached sends text even if ctx is already done, so failures caused
// by a deadline still reach the user.
func replyDetached(ctx context.Context, log *slog.Logger, reply platform.Replier, text string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureReplyTimeout)
	defer cancel()
	if err := reply.Text(sendCtx, text); err != nil {
		log.ErrorContext(ctx, "Failed to send failure reply", "error", err)
	}
}
