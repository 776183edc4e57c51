package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"opboard/internal/adapters/discord"
	"opboard/internal/application"
	"opboard/internal/config"
	"opboard/internal/infrastructure/i18n"
	"opboard/internal/infrastructure/roles"
	"opboard/pkg/tz"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile       string
		migrationsDir string
		rolesPath     string
		showVersion   bool
	)
	flagSet := pflag.NewFlagSet("opboard", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "load environment from this file (default: ./.env if present)")
	flagSet.StringVar(&migrationsDir, "migrations", "", "apply migrations from this directory instead of the embedded ones")
	flagSet.StringVar(&rolesPath, "roles-config", "", "signup roles file, overrides ROLES_CONFIG")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("opboard %s\n", version)
		return nil
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if rolesPath != "" {
		cfg.RolesConfig = rolesPath
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	location, err := tz.Load(cfg.Timezone)
	if err != nil {
		return err
	}
	roleConfig, err := roles.Load(cfg.RolesConfig)
	if err != nil {
		return err
	}
	translator, err := i18n.NewTranslator(cfg.Locale, logger)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.DatabaseURL, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer st.close()

	session, err := discord.NewSession(cfg.Token)
	if err != nil {
		return err
	}
	c := clockwork.NewRealClock()
	inbox := discord.NewInbox(c)
	gateway := discord.NewGateway(session, session.State, cfg.GuildID, inbox)

	board := application.NewBoard(st.events, st.signups, gateway, roleConfig, translator, c,
		application.BoardConfig{
			Location:   location,
			TimeLayout: cfg.TimeFormat,
			Locale:     cfg.Locale,
		}, logger.With("component", "board"))
	renders := application.NewDebouncer(c, cfg.RenderDebounce, board.RerenderDetached)
	defer renders.Stop()

	signups := application.NewSignupService(st.events, st.signups, gateway, roleConfig, cfg.StaffRoleID,
		application.NewPendingRemovals(), renders, logger.With("component", "signups"))
	events := application.NewEventService(st.events, st.signups, gateway, board, renders, translator, c,
		application.EventConfig{
			BoardChannelID:  cfg.BoardChannelID,
			StaffRoleID:     cfg.StaffRoleID,
			Locale:          cfg.Locale,
			CommandPrefix:   cfg.CommandPrefix,
			Location:        location,
			DialogueTimeout: cfg.DialogueTimeout,
		}, logger.With("component", "events"))
	scheduler := application.NewScheduler(st.events, st.signups, gateway, renders, translator, c,
		application.SchedulerConfig{
			ReminderInterval: cfg.ReminderInterval,
			ReminderLead:     cfg.ReminderLead,
			CleanupInterval:  cfg.CleanupInterval,
			CleanupGrace:     cfg.CleanupGrace,
			Locale:           cfg.Locale,
		}, logger.With("component", "scheduler"))
	reconciler := application.NewReconciler(st.events, gateway, cfg.BoardChannelID, logger.With("component", "reconciler"))

	handler := discord.NewHandler(events, signups, gateway, inbox,
		application.NewDeduplicator(c, cfg.DedupTTL), translator,
		discord.HandlerConfig{
			GuildID:        cfg.GuildID,
			BoardChannelID: cfg.BoardChannelID,
			CommandPrefix:  cfg.CommandPrefix,
			Locale:         cfg.Locale,
		}, logger.With("component", "discord"))

	bot := discord.NewBot(session, gateway, handler, reconciler, scheduler, logger)
	logger.Info("starting",
		"version", version,
		"guild_id", cfg.GuildID,
		"board_channel_id", cfg.BoardChannelID,
		"roles", len(roleConfig.Roles),
		"timezone", location.String(),
	)
	return bot.Run(ctx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
