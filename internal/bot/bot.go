// Package bot orchestrates the chat hosts and the scheduler for the lifetime
// of the process.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/aishitbot/internal/platform"
)

// Bot runs every host and the scheduler until shutdown.
type Bot struct {
	logger    *slog.Logger
	hosts     []platform.Host
	scheduler *Scheduler
}

// NewBot creates the orchestrator. scheduler may be nil when no upkeep runs.
func NewBot(logger *slog.Logger, hosts []platform.Host, scheduler *Scheduler) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		hosts:     hosts,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. A host that returns while ctx is still live counts as a failure.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator", "hosts", len(b.hosts))

	g, gCtx := errgroup.WithContext(ctx)

	for _, host := range b.hosts {
		g.Go(func() error {
			b.logger.Info("Starting host", "host", host.Name())
			err := host.Run(gCtx)
			b.logger.Info("Host stopped", "host", host.Name())

			if err != nil {
				return fmt.Errorf("%s host failed: %w", host.Name(), err)
			}
			if gCtx.Err() == nil {
				b.logger.Warn("Host stopped unexpectedly without context cancellation", "host", host.Name())
				return fmt.Errorf("%s host stopped unexpectedly", host.Name())
			}
			return nil
		})
	}

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(gCtx); err != nil {
				b.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	b.logger.Info("Bot orchestrator running, waiting for shutdown signal or error")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
