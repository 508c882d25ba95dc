package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	configloader "github.com/stefs/evelyn-reminder/external/config"
	discordimpl "github.com/stefs/evelyn-reminder/external/discord"
	repositoryimpl "github.com/stefs/evelyn-reminder/external/repository"
	webhookimpl "github.com/stefs/evelyn-reminder/external/webhook"
	"github.com/stefs/evelyn-reminder/internal/bot"
	"github.com/stefs/evelyn-reminder/internal/config"
	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/dispatch"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/httpapi"
)

const (
	discordConnectTimeout = 20 * time.Second
	httpShutdownTimeout   = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	run(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discordimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	engine.RegisterDI(injector)
	httpapi.RegisterDI(injector)
	bot.RegisterDI(injector)
	dispatch.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	dispatcher, err := do.Invoke[*dispatch.Dispatcher](injector)
	if err != nil {
		slog.Error("failed to resolve dispatcher", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}
	httpDone := make(chan struct{})
	go func() {
		slog.Info("startup: http api listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(httpDone)
	}()

	var dc discord.Client
	if cfg.DiscordEnabled() {
		dc = connectDiscord(injector)
		defer func() {
			if err := dc.Close(); err != nil {
				slog.Error("discord close failed", "error", err)
			}
		}()
	} else {
		slog.Info("startup: discord integration disabled")
	}

	if err := dispatcher.Start(); err != nil {
		slog.Error("dispatcher start failed", "error", err)
		os.Exit(1)
	}
	defer dispatcher.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-httpDone:
	}

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}

func connectDiscord(injector do.Injector) discord.Client {
	dc, err := do.Invoke[discord.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	chatBot, err := do.Invoke[*bot.Bot](injector)
	if err != nil {
		slog.Error("failed to resolve bot", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	chatBot.Register()
	go func() {
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
	}()
	return dc
}
