// Package main is the entry point for the shelltrayd notification daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/graylag/shelltray/internal/bridge"
	"github.com/graylag/shelltray/internal/config"
	"github.com/graylag/shelltray/internal/daemon"
	"github.com/graylag/shelltray/internal/dbus"
	"github.com/graylag/shelltray/internal/model"
	"github.com/graylag/shelltray/internal/notify"
	"github.com/graylag/shelltray/internal/store"
)

// Build-time variables (set via ldflags)
var version = "dev"

func main() {
	monitorMode := flag.Bool("monitor", false,
		"Run in monitor mode (passive capture, works alongside another notification daemon)")
	configPath := flag.String("config", "",
		"Path to daemon config file (default: ~/.config/shelltray/shelltrayd.toml)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("shelltrayd version", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLevel(cfg.Logging.Level))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *monitorMode {
		runMonitor(ctx, cfg, logger)
		return
	}

	logger.Info("starting shelltrayd", "version", version)
	d, err := daemon.New(cfg, version, logger, logLevel)
	if err != nil {
		logger.Error("failed to initialize daemon", "error", err)
		os.Exit(1)
	}
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shelltrayd stopped")
}

func loadConfig(path string) (*config.DaemonConfig, error) {
	if path != "" {
		return config.LoadDaemonConfigFrom(path)
	}
	return config.LoadDaemonConfig()
}

func recordUrgency(u notify.Urgency) int {
	switch u {
	case notify.UrgencyLow:
		return model.UrgencyLow
	case notify.UrgencyCritical:
		return model.UrgencyCritical
	default:
		return model.UrgencyNormal
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runMonitor eavesdrops on the bus and records notify traffic to history
// without claiming the service name. No banners, no sounds, no signals.
func runMonitor(ctx context.Context, cfg *config.DaemonConfig, logger *slog.Logger) {
	logger.Info("starting shelltrayd in monitor mode", "version", version)

	persistence, err := store.NewJSONLPersistence(cfg.HistoryPath())
	if err != nil {
		logger.Error("failed to open history file", "error", err)
		os.Exit(1)
	}
	historyStore := store.NewStore(persistence)
	historyStore.SetMaxEntries(cfg.History.MaxEntries)
	if err := historyStore.Hydrate(); err != nil {
		logger.Warn("failed to hydrate store", "error", err)
	}
	logger.Info("history store initialized",
		"path", cfg.HistoryPath(), "count", historyStore.Count())

	monitor := dbus.NewMonitor(logger)
	monitor.SetNotifyHandler(func(req bridge.NotifyRequest) {
		if req.Hints.Transient {
			logger.Debug("skipped transient notification", "app", req.AppName)
			return
		}
		rec, err := model.NewRecord()
		if err != nil {
			logger.Error("failed to create record", "error", err)
			return
		}
		rec.AppName = req.AppName
		rec.Summary = req.Summary
		rec.Body = req.Body
		rec.SetUrgency(recordUrgency(req.Hints.Urgency))
		rec.DesktopEntry = req.Hints.DesktopEntry
		rec.Resident = req.Hints.Resident
		rec.SoundName = req.Hints.SoundName
		rec.SoundFile = req.Hints.SoundFile
		rec.EnsureContentHash()
		if err := historyStore.Add(*rec); err != nil {
			logger.Error("failed to persist notification", "app", req.AppName, "error", err)
			return
		}
		logger.Info("captured notification", "app", rec.AppName, "summary", rec.Summary)
	})

	if err := monitor.Start(); err != nil {
		logger.Error("failed to start bus monitor", "error", err)
		os.Exit(1)
	}
	logger.Info("monitor ready, passively capturing notifications")

	<-ctx.Done()
	logger.Info("shutting down")
	monitor.Stop()
	if err := historyStore.Close(); err != nil {
		logger.Warn("error closing store", "error", err)
	}
	logger.Info("monitor stopped")
}
