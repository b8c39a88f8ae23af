package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mp4conv/api"
	"mp4conv/batch"
	"mp4conv/config"
	"mp4conv/ffmpeg"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ffmpegRunner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize ffmpeg runner: %w", err)
	}

	logs := batch.NewLogBuffer(cfg.LogBufferLines)
	log.AddHook(logs)

	cfg.OnChange(func(next *config.Config, err error) {
		if err != nil {
			log.Warnf("Ignoring config change: %v", err)
			return
		}
		log.SetLevel(config.ParseLogLevel(next.LogLevel))
		log.Infof("Config reloaded, log level %s", log.GetLevel())
	})

	session := batch.NewSession(
		batch.NewExecutor(cfg, ffmpegRunner),
		batch.WithOutputDirName(cfg.OutputDirName),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.SetupRouter(ctx, session, logs, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")
		session.Cancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exiting")
	return nil
}
