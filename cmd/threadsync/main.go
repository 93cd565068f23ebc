package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"threadsync/internal/api"
	"threadsync/internal/app"
	"threadsync/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML configuration file")
		threadID   = flag.String("thread", "", "thread id to activate")
		userID     = flag.String("user", "", "current user id")
		userName   = flag.String("name", "", "current user display name")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	if err := run(*configPath, *threadID, *userID, *userName, logger); err != nil {
		logger.Fatal().Err(err).Msg("threadsync exited")
	}
}

func run(configPath, threadID, userID, userName string, logger zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Service.BaseURL == "" {
		return fmt.Errorf("service base URL is required (service.base_url or THREADSYNC_SERVICE_BASE_URL)")
	}

	client := api.NewClient(cfg.Service.BaseURL, cfg.Service.Timeout, logger)
	application, err := app.New(cfg, client, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}

	st := application.Store()
	if userID != "" {
		st.SetIdentity(userID, userName)
	}

	st.Subscribe(func() {
		if err := st.LastError(); err != nil {
			logger.Warn().Err(err).Msg("store")
			st.ClearError()
		}
		if notice := st.Notice(); notice != "" {
			logger.Info().Msg(notice)
			st.ClearNotice()
		}
	})

	if threadID != "" {
		if err := st.Activate(ctx, threadID); err != nil {
			return err
		}
		if t := st.Thread(); t != nil {
			logger.Info().
				Str("thread", t.ID).
				Str("type", string(t.Type)).
				Int("posts", t.PostCount).
				Msg("thread active")
		}
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}
