package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/securechat/internal/auth"
	"github.com/Tyrowin/securechat/internal/config"
	"github.com/Tyrowin/securechat/internal/logging"
	"github.com/Tyrowin/securechat/internal/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(envFile)
	if err != nil {
		return configError(fmt.Errorf("config error: %w", err))
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return configError(err)
	}
	slog.SetDefault(log)

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), auth.WithLeeway(cfg.TokenLeeway))
	s := server.New(*cfg, verifier, server.NewSlogLifecycle(log), log)
	s.StartHub()

	httpServer := server.CreateServer(cfg.Port, s.SetupRoutes())

	if cfg.ConfigFile != "" {
		go func() {
			if err := config.Watch(ctx, log, *cfg, cfg.ConfigFile, s.ApplyConfig); err != nil {
				log.Error("Configuration watcher stopped", "path", cfg.ConfigFile, "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(log, httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = s.Shutdown(nil)
			return runtimeError(fmt.Errorf("server failed: %w", err))
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if err := s.Shutdown(httpServer); err != nil {
		return runtimeError(fmt.Errorf("shutdown: %w", err))
	}
	log.Info("Relay stopped")
	return nil
}
