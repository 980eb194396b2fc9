package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	blacklistimpl "github.com/comzer-gov/casbot/external/blacklist"
	configloader "github.com/comzer-gov/casbot/external/config"
	"github.com/comzer-gov/casbot/external/czr"
	"github.com/comzer-gov/casbot/external/discord"
	extractionimpl "github.com/comzer-gov/casbot/external/extraction"
	"github.com/comzer-gov/casbot/external/httpapi"
	identityimpl "github.com/comzer-gov/casbot/external/identity"
	"github.com/comzer-gov/casbot/external/logging"
	"github.com/comzer-gov/casbot/external/scheduler"
	webhookimpl "github.com/comzer-gov/casbot/external/webhook"
	"github.com/comzer-gov/casbot/internal/command"
	"github.com/comzer-gov/casbot/internal/config"
	discordpkg "github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/notify"
	"github.com/comzer-gov/casbot/internal/registry"
	"github.com/comzer-gov/casbot/internal/rolepost"
	"github.com/comzer-gov/casbot/internal/session"
	"github.com/comzer-gov/casbot/internal/webhook"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	bridgeCheckTimeout    = 10 * time.Second
	initialSyncTimeout    = 2 * time.Hour
	shutdownTimeout       = 15 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()

	injector := setupDI(cfg)
	initLogger(cfg, injector)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "blacklist_backend", cfg.BlacklistBackend, "debug", cfg.DebugMode)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config, injector do.Injector) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	opt := logging.Options{Level: logLevel, FilePath: cfg.LogFilePath}
	if cfg.LogWebhookURL != "" {
		opt.Forwarder = do.MustInvoke[*webhook.Forwarder](injector)
	}
	slog.SetDefault(logging.NewLogger(os.Stdout, opt))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, config.NewDebugSwitch(cfg.DebugMode))
	webhookimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	blacklistimpl.RegisterDI(injector)
	identityimpl.RegisterDI(injector)
	extractionimpl.RegisterDI(injector)
	czr.RegisterDI(injector)
	registry.RegisterDI(injector)
	rolepost.RegisterDI(injector)
	session.RegisterDI(injector)
	command.RegisterDI(injector)
	notify.RegisterDI(injector)
	httpapi.RegisterDI(injector)
	scheduler.RegisterDI(injector)

	return injector
}

func mustInvoke[T any](injector do.Injector, name string) T {
	v, err := do.Invoke[T](injector)
	if err != nil {
		slog.Error("failed to resolve "+name, "error", err)
		os.Exit(1)
	}
	return v
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc := mustInvoke[discordpkg.Client](injector, "discord client")
	manager := mustInvoke[*session.Manager](injector, "session manager")
	poster := mustInvoke[*rolepost.Service](injector, "rolepost service")
	router := mustInvoke[*command.Router](injector, "command router")
	syncer := mustInvoke[*registry.Syncer](injector, "member syncer")
	bridge := mustInvoke[*czr.Client](injector, "citizen registry client")
	queue := mustInvoke[*notify.Queue](injector, "notification queue")
	server := mustInvoke[*httpapi.Server](injector, "http server")
	cron := mustInvoke[*scheduler.Scheduler](injector, "scheduler")

	var forwarder *webhook.Forwarder
	if cfg.LogWebhookURL != "" {
		forwarder = mustInvoke[*webhook.Forwarder](injector, "log forwarder")
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	dc.RegisterMessageHandler(func(ev discordpkg.MessageEvent) {
		defer recoverEvent("message")
		if poster.HandleMessage(ev) {
			return
		}
		manager.HandleMessage(ev)
	})
	dc.RegisterComponentHandler(func(ev discordpkg.ComponentEvent) {
		defer recoverEvent("component")
		if manager.HandleComponent(ev) {
			return
		}
		poster.HandleComponent(ev)
	})
	dc.RegisterModalSubmitHandler(func(ev discordpkg.ModalSubmitEvent) {
		defer recoverEvent("modal")
		manager.HandleModalSubmit(ev)
	})
	dc.RegisterSlashCommandHandler(router.HandleSlashCommand)
	dc.RegisterMemberHandler(syncer.HandleMemberEvent)

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	if err := dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, command.Definitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID, "commands", len(command.Definitions()))

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	checkBridge(runCtx, bridge)
	go func() {
		syncCtx, cancel := context.WithTimeout(runCtx, initialSyncTimeout)
		defer cancel()
		if err := syncer.FullSync(syncCtx); err != nil {
			slog.Error("initial member sync failed", "error", err)
		}
	}()

	if forwarder != nil {
		forwarder.Start(runCtx)
	}
	manager.Start(runCtx)
	queue.Start(runCtx)
	server.Start()
	cron.RefreshPresence()
	cron.Start()

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	shutdown(server, cron, queue, manager)
	stopRun()
	if forwarder != nil {
		forwarder.Stop()
	}
}

// recoverEvent keeps a panicking handler from taking down the gateway loop.
func recoverEvent(kind string) {
	if r := recover(); r != nil {
		slog.Error("event handler panicked", "event", kind, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	}
}

func checkBridge(ctx context.Context, bridge *czr.Client) {
	ctx, cancel := context.WithTimeout(ctx, bridgeCheckTimeout)
	defer cancel()
	if err := bridge.BridgeHealthz(ctx); err != nil {
		slog.Warn("citizen ledger bridge is unreachable", "error", err)
		return
	}
	slog.Info("citizen ledger bridge is reachable")
}

func shutdown(server *httpapi.Server, cron *scheduler.Scheduler, queue *notify.Queue, manager *session.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	cron.Stop()
	queue.Stop()
	manager.Stop()
	slog.Info("shutdown complete")
}
