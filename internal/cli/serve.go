package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/checkmate/checkmate/internal/bot"
	"github.com/checkmate/checkmate/internal/bot/handlers"
	"github.com/checkmate/checkmate/internal/bot/tasks"
	"github.com/checkmate/checkmate/internal/commands"
	"github.com/checkmate/checkmate/internal/database"
	"github.com/checkmate/checkmate/internal/logger"
	"github.com/checkmate/checkmate/internal/media"
	"github.com/checkmate/checkmate/internal/policy"
	"github.com/checkmate/checkmate/internal/recorder"
	"github.com/checkmate/checkmate/internal/registry"
	"github.com/checkmate/checkmate/internal/router"
	"github.com/checkmate/checkmate/internal/telegram"
	"github.com/checkmate/checkmate/internal/webhook"
	"github.com/checkmate/checkmate/internal/whatsapp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, the Telegram listener and scheduled tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// pipeline holds the components shared by every channel's router.
type pipeline struct {
	policy   *policy.Policy
	registry *registry.Registry
	recorder *recorder.Recorder
	media    *media.Store
	commands router.CommandHandler
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.ValidateWhatsApp(); err != nil {
		return err
	}

	db, store, err := a.openStore()
	if err != nil {
		return err
	}
	defer a.closeDB(db)

	p, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	waRouter, err := a.newWhatsAppRouter(p)
	if err != nil {
		return err
	}
	hook := webhook.NewHandler(a.log, waRouter, webhook.HandlerConfig{
		VerifyToken:    a.cfg.WhatsApp.VerifyToken,
		AppSecret:      a.cfg.WhatsApp.AppSecret,
		ProcessTimeout: a.cfg.Server.ProcessTimeout,
	})
	server := webhook.NewServer(a.cfg.Server.Addr, a.log, hook, webhook.NewHealthHandler(store))

	opts := bot.Options{
		Server:          server,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Waiters:         []bot.Waiter{waRouter},
	}

	if a.cfg.Telegram.Enabled() {
		tg, tgRouter, err := a.newTelegram(p)
		if err != nil {
			return err
		}
		opts.TelegramBot = tg
		opts.Waiters = append(opts.Waiters, tgRouter)
	} else {
		a.log.Info("Telegram token not set, Telegram channel disabled")
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go invalidateOnSignal(ctx, hup, p.policy, a.log)

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: a.log, Store: store})
	opts.Scheduler, err = bot.NewScheduler(a.log, &a.cfg.Scheduler, taskMap)
	if err != nil {
		return err
	}

	a.log.Info("Starting checkmate...", "environment", a.cfg.Environment, "commands_enabled", a.cfg.Debug.CommandsEnabled)
	return bot.NewBot(a.log, opts).Run(ctx)
}

func (a *app) newPipeline(store database.Store) (*pipeline, error) {
	mediaStore, err := media.NewDiskStore(a.cfg.Media.Root, a.log)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		policy:   a.newPolicy(store),
		registry: registry.New(store, a.log, registry.WithCategory(a.cfg.Claims.DefaultCategory)),
		recorder: recorder.New(store, a.log),
		media:    mediaStore,
	}
	if a.cfg.Debug.CommandsEnabled {
		a.log.Warn("Debug commands enabled")
		p.commands = commands.New(p.registry, p.recorder, a.log)
	}
	return p, nil
}

func (p *pipeline) router(transport router.Transport, a *app) (*router.Router, error) {
	return router.New(router.Deps{
		Policy:    p.policy,
		Registry:  p.registry,
		Recorder:  p.recorder,
		Transport: transport,
		Media:     p.media,
		Commands:  p.commands,
		Logger:    a.log,
	})
}

func (a *app) newWhatsAppRouter(p *pipeline) (*router.Router, error) {
	wa := a.cfg.WhatsApp
	client, err := whatsapp.New(whatsapp.Config{
		BaseURL:            wa.BaseURL,
		Token:              wa.Token,
		PhoneNumberID:      wa.PhoneNumberID,
		Timeout:            wa.Timeout,
		RequestsPerSecond:  wa.RequestsPerSecond,
		Burst:              wa.Burst,
		MaxMediaBytes:      wa.MaxMediaBytes,
		BreakerMaxFailures: wa.BreakerMaxFailures,
	}, a.log)
	if err != nil {
		return nil, err
	}
	return p.router(client, a)
}

// newTelegram wires the Telegram channel. The transport is bound after the
// bot exists because the bot's default handler needs the router.
func (a *app) newTelegram(p *pipeline) (*tgbot.Bot, *router.Router, error) {
	transport := telegram.NewTransport(a.cfg.Telegram.Token, a.cfg.Telegram.ServerURL, a.log)
	tgRouter, err := p.router(transport, a)
	if err != nil {
		return nil, nil, err
	}

	hDeps := handlers.HandlerDeps{
		Logger:    a.log,
		Router:    tgRouter,
		Responses: p.policy,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(a.log)),
		tgbot.WithDefaultHandler(handlers.DefaultHandler(hDeps)),
	}
	if a.cfg.Telegram.ServerURL != "" {
		botOpts = append(botOpts, tgbot.WithServerURL(a.cfg.Telegram.ServerURL))
	}

	tg, err := telegram.NewTelegramBot(a.cfg.Telegram.Token, a.log, botOpts...)
	if err != nil {
		return nil, nil, err
	}
	transport.Bind(tg)

	if err := telegram.RegisterHandlers(tg, a.log, handlers.RegisterAllCommands(hDeps)); err != nil {
		return nil, nil, fmt.Errorf("failed to register telegram handlers: %w", err)
	}
	return tg, tgRouter, nil
}

type invalidator interface {
	Invalidate()
}

// invalidateOnSignal drops cached policy documents on every signal, so
// changes made with the policy and responses commands apply immediately.
func invalidateOnSignal(ctx context.Context, signals <-chan os.Signal, cache invalidator, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			cache.Invalidate()
			log.Info("Policy cache invalidated")
		}
	}
}
