// Package bot wires the long-running components of the service together
// and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/checkmate/checkmate/internal/webhook"
)

// Waiter is a component with background work to drain on shutdown, such as
// a router's pending media uploads.
type Waiter interface {
	Wait()
}

// Options configures a Bot. TelegramBot is optional.
type Options struct {
	Server          *webhook.Server
	ShutdownTimeout time.Duration
	TelegramBot     *tgbot.Bot
	Scheduler       *Scheduler
	Waiters         []Waiter
}

// Bot represents the running service and manages its components' lifecycle.
type Bot struct {
	logger *slog.Logger
	opts   Options
}

// NewBot creates a new Bot orchestrating the given components.
func NewBot(logger *slog.Logger, opts Options) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger: logger.With("component", "orchestrator"),
		opts:   opts,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Pending background work is drained before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if b.opts.Server != nil {
		g.Go(func() error {
			return b.opts.Server.Run(gCtx, b.opts.ShutdownTimeout)
		})
	}

	if b.opts.TelegramBot != nil {
		g.Go(func() error {
			b.logger.Info("Starting Telegram bot listener...")
			b.opts.TelegramBot.Start(gCtx)
			b.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	if b.opts.Scheduler != nil {
		g.Go(func() error {
			if err := b.opts.Scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			if err := b.opts.Scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	for _, w := range b.opts.Waiters {
		w.Wait()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
