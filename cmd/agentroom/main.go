package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antigravity-dev/agentroom/internal/api"
	"github.com/antigravity-dev/agentroom/internal/config"
	"github.com/antigravity-dev/agentroom/internal/llmclient"
	"github.com/antigravity-dev/agentroom/internal/orchestrator"
	"github.com/antigravity-dev/agentroom/internal/room"
	"github.com/antigravity-dev/agentroom/internal/scheduler"
	"github.com/antigravity-dev/agentroom/internal/store"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "agentroom.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	setTickInterval := flag.String("set-tick-interval", "", "patch general.tick_interval in the config file and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *setTickInterval != "" {
		changed, err := setTickIntervalInConfigFile(*configPath, *setTickInterval)
		if err != nil {
			logger.Error("failed to set tick interval", "error", err)
			os.Exit(1)
		}
		logger.Info("tick interval updated", "config", *configPath, "changed", changed)
		return
	}

	logger.Info("agentroom starting", "config", *configPath)

	cfgManager, err := config.LoadManager(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger = configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.General.StateDB)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.General.StateDB, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	rooms := room.New(st, logger.With("component", "room"))

	defaults := room.DefaultAgentDefaults{
		TokenBudget:       cfg.Agents.TokenBudget,
		KnowledgePct:      cfg.Agents.KnowledgePct,
		RecentActionsPct:  cfg.Agents.RecentActionsPct,
		RoomsPct:          cfg.Agents.RoomsPct,
		RoomWPM:           cfg.Agents.DefaultRoomWPM,
		HeartbeatInterval: cfg.Agents.HeartbeatMin.Duration,
	}
	if err := rooms.EnsureArchitect(defaults); err != nil {
		logger.Error("failed to bootstrap architect", "error", err)
		os.Exit(1)
	}
	seeds, err := config.LoadPersonaSeeds(cfg.General.PersonasFile)
	if err != nil {
		logger.Error("failed to load persona seeds", "error", err)
		os.Exit(1)
	}
	if err := rooms.EnsurePersonaSeeds(seeds, defaults); err != nil {
		logger.Error("failed to bootstrap persona seeds", "error", err)
		os.Exit(1)
	}

	llm := llmclient.New(llmclient.Config{
		APIKey:               os.Getenv("ANTHROPIC_API_KEY"),
		MaxAttempts:          uint64(cfg.LLM.RetryMaxAttempts),
		BaseDelay:            cfg.LLM.RetryBase.Duration,
		MaxDelay:             cfg.LLM.RetryMax.Duration,
		TemperatureSupported: cfg.ModelTemperatureSupported,
	})

	engine := orchestrator.New(st, rooms, llm, cfgManager, logger.With("component", "orchestrator"))
	source := orchestrator.NewSource(st)

	sched := scheduler.New(scheduler.Config{
		Mode:              scheduler.Mode(cfg.General.SchedulerMode),
		TickInterval:      cfg.General.TickInterval.Duration,
		PullForwardWindow: cfg.General.PullForwardWindow.Duration,
	}, source, engine, logger.With("component", "scheduler"))

	apiServer, err := api.NewServer(cfgManager, st, rooms, logger.With("component", "api"))
	if err != nil {
		logger.Error("failed to initialize api server", "error", err)
		os.Exit(1)
	}
	defer apiServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			logger.Error("api server stopped", "error", err)
		}
	}()

	logger.Info("agentroom running",
		"scheduler_mode", cfg.General.SchedulerMode,
		"state_db", cfg.General.StateDB,
		"api_bind", cfg.API.Bind,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if err := cfgManager.Reload(*configPath); err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			cfg = cfgManager.Get()
			logger = configureLogger(cfg.General.LogLevel, *dev)
			slog.SetDefault(logger)
			logger.Info("config reloaded")
		default:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			sched.Stop()
			logger.Info("agentroom stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		}
	}
}
