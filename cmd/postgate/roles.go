package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"postgate/internal/bot"
	"postgate/internal/config"
	"postgate/internal/daemon"
	"postgate/internal/dashboard"
	"postgate/internal/decision"
	"postgate/internal/health"
	"postgate/internal/logging"
	"postgate/internal/notifications"
	"postgate/internal/preflight"
	"postgate/internal/producer"
	"postgate/internal/publisher"
	"postgate/internal/queue"
	"postgate/internal/scheduler"
	"postgate/internal/services/freepik"
	"postgate/internal/services/instagram"
	"postgate/internal/services/textgen"
)

// roleEnv carries what every role needs while it builds its services.
type roleEnv struct {
	cfg    *config.Config
	store  queue.Store
	logger *slog.Logger
}

// roleBuilder returns the services for one role plus optional heartbeat
// options (the publisher reports posts today).
type roleBuilder func(ctx context.Context, env roleEnv) ([]daemon.Service, []health.WriterOption, []scheduler.Task, error)

func newRoleCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "bot",
			Short: "Run the Telegram bot (producer and decision surface)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRole(cmd, ctx, daemon.RoleBot, buildBot)
			},
		},
		{
			Use:   "publisher",
			Short: "Run the publisher sweep loop",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRole(cmd, ctx, daemon.RolePublisher, buildPublisher)
			},
		},
		{
			Use:   "dashboard",
			Short: "Serve the read-only dashboard API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRole(cmd, ctx, daemon.RoleDashboard, buildDashboard)
			},
		},
	}
}

func runRole(cmd *cobra.Command, cctx *commandContext, role string, build roleBuilder) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	base, err := cctx.logger()
	if err != nil {
		return err
	}
	logger := base.With(logging.String(logging.FieldRole, role))

	if failed := preflight.Failed(preflight.RunLocal(cfg)); len(failed) > 0 {
		for _, r := range failed {
			logger.Error("preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
			)
		}
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}

	store, err := queue.Open(cfg, logger)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	if removed, err := store.Reconcile(signalCtx); err != nil {
		logger.Warn("queue reconcile failed", logging.Error(err), logging.String(logging.FieldErrorHint, "check queue directory permissions"))
	} else if len(removed) > 0 {
		logger.Info("reconciled interrupted moves", logging.Int("removed", len(removed)))
	}

	services, heartbeatOpts, tasks, err := build(signalCtx, roleEnv{cfg: cfg, store: store, logger: logger})
	if err != nil {
		return err
	}

	writer := health.NewWriter(cfg.Health.Dir, role, heartbeatOpts...)
	defer func() {
		if err := writer.Remove(); err != nil {
			logger.Warn("remove heartbeat failed", logging.Error(err))
		}
	}()
	tasks = append(tasks, scheduler.Task{
		Name:      "health",
		Interval:  cfg.HealthInterval(),
		Immediate: true,
		Run:       writer.Beat,
	})
	sched, err := scheduler.New(logger, tasks...)
	if err != nil {
		return err
	}
	services = append(services, daemon.Service{Name: "scheduler", Run: sched.Run})

	d, err := daemon.New(cfg, role, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	err = d.Run(signalCtx, services...)
	logger.Info("postgate shutting down")
	return err
}

func buildBot(ctx context.Context, env roleEnv) ([]daemon.Service, []health.WriterOption, []scheduler.Task, error) {
	cfg := env.cfg
	if err := cfg.RequireBot(); err != nil {
		return nil, nil, nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect telegram: %w", err)
	}
	text, err := textgen.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	images := freepik.New(freepik.Config{
		APIKey:         cfg.Image.APIKey,
		BaseURL:        cfg.Image.BaseURL,
		Size:           cfg.Image.Size,
		TimeoutSeconds: cfg.Image.TimeoutSeconds,
	})
	if !cfg.ImageEnabled() {
		env.logger.Info("image generation disabled", logging.String("reason", "image.api_key not set"))
	}

	prod := producer.New(env.store, env.logger,
		producer.WithGenerators(text, images),
		producer.WithCaptionTokens(cfg.Text.CaptionMaxTokens),
		producer.WithImageShape(cfg.Image.Size),
	)
	b := bot.New(cfg, api, bot.Deps{
		Store:    env.store,
		Producer: prod,
		Decider:  decision.New(env.store, env.logger),
		Text:     text,
	}, env.logger)
	env.logger.Info("telegram bot authorized", logging.String("username", api.Self.UserName))
	return []daemon.Service{{Name: "bot", Run: b.Run}}, nil, nil, nil
}

func buildPublisher(ctx context.Context, env roleEnv) ([]daemon.Service, []health.WriterOption, []scheduler.Task, error) {
	cfg := env.cfg
	if err := cfg.RequirePublisher(); err != nil {
		return nil, nil, nil, err
	}
	ig, err := instagram.New(instagram.Config{
		AccessToken: cfg.Instagram.AccessToken,
		AccountID:   cfg.Instagram.AccountID,
		BaseURL:     cfg.Instagram.BaseURL,
	}, &http.Client{Timeout: cfg.PublishTimeout()})
	if err != nil {
		return nil, nil, nil, err
	}

	pub := publisher.New(cfg, env.store, ig, env.logger,
		publisher.WithNotifier(publisherNotifier(cfg, env.logger)))

	restored, err := pub.Restore(ctx)
	if err != nil {
		env.logger.Warn("could not restore today's post count",
			logging.Error(err),
			logging.String(logging.FieldEventType, "quota_restore_failed"),
			logging.String(logging.FieldImpact, "daily quota starts at zero"),
		)
	}
	env.logger.Info("publisher configured",
		logging.Int("posts_today", restored),
		logging.Int("max_posts_per_day", cfg.Publisher.MaxPostsPerDay),
		logging.Duration("sweep_interval", cfg.SweepInterval()),
	)
	sweep := scheduler.Task{
		Name:      "sweep",
		Interval:  cfg.SweepInterval(),
		Immediate: true,
		Run: func(ctx context.Context) error {
			_, err := pub.Sweep(ctx)
			return err
		},
	}
	opts := []health.WriterOption{health.WithPostsToday(pub.Quota().Used)}
	return nil, opts, []scheduler.Task{sweep}, nil
}

// publisherNotifier reports publish outcomes to the Telegram admin when a
// bot token is configured. Notification setup failures never stop the
// publisher.
func publisherNotifier(cfg *config.Config, logger *slog.Logger) notifications.Service {
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" || cfg.Telegram.AdminID == 0 {
		return notifications.NewService(cfg, nil)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn("telegram notifications unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notifier_unavailable"),
			logging.String(logging.FieldImpact, "publish results will only be logged"),
		)
		return notifications.NewService(cfg, nil)
	}
	return notifications.NewService(cfg, api)
}

func buildDashboard(_ context.Context, env roleEnv) ([]daemon.Service, []health.WriterOption, []scheduler.Task, error) {
	if strings.EqualFold(env.cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if env.cfg.Dashboard.AuthToken == "" {
		env.logger.Warn("dashboard running without authentication",
			logging.String(logging.FieldEventType, "dashboard_unauthenticated"),
			logging.String(logging.FieldErrorHint, "set dashboard.auth_token or DASHBOARD_AUTH_TOKEN"),
		)
	}
	srv := dashboard.New(env.cfg, env.store, env.logger)
	run := func(ctx context.Context) error {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
	return []daemon.Service{{Name: "dashboard", Run: run}}, nil, nil, nil
}
