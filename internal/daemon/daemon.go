package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/graylag/shelltray/internal/audio"
	"github.com/graylag/shelltray/internal/bridge"
	"github.com/graylag/shelltray/internal/config"
	"github.com/graylag/shelltray/internal/dbus"
	"github.com/graylag/shelltray/internal/event"
	"github.com/graylag/shelltray/internal/lockscreen"
	"github.com/graylag/shelltray/internal/model"
	"github.com/graylag/shelltray/internal/notify"
	"github.com/graylag/shelltray/internal/store"
	"github.com/graylag/shelltray/internal/tray"
)

// Daemon assembles and runs the notification server. Request handling
// lives on the control loop; history and state writes are pushed off it.
type Daemon struct {
	version  string
	log      *slog.Logger
	logLevel *slog.LevelVar

	cfgMu sync.RWMutex
	cfg   *config.DaemonConfig

	loop       *event.Loop
	tray       *tray.Tray
	summarizer *lockscreen.Summarizer
	bridge     *bridge.Bridge
	server     *dbus.Server
	names      *dbus.NameWatcher
	audio      *audio.Manager
	notifier   *InternalNotifier

	store      *store.Store
	tombstones *store.TombstoneFile

	stateMu sync.Mutex
	state   *store.SharedState

	cfgWatcher   *config.Watcher
	stateWatcher *StateWatcher
	fileWatcher  *store.HistoryWatcher
}

// New builds a daemon from a validated config. logLevel may be nil; when
// set, config reloads adjust it.
func New(cfg *config.DaemonConfig, version string, logger *slog.Logger, logLevel *slog.LevelVar) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		version:  version,
		log:      logger,
		logLevel: logLevel,
		cfg:      cfg,
		loop:     event.NewLoop(),
	}

	persistence, err := store.NewJSONLPersistence(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	d.store = store.NewStore(persistence)
	d.store.SetMaxEntries(cfg.History.MaxEntries)

	d.tombstones = store.NewTombstoneFile(config.TombstonePath())
	if hashes, err := d.tombstones.Load(); err != nil {
		logger.Warn("failed to load tombstones", "error", err)
	} else {
		d.store.LoadTombstones(hashes)
	}

	if err := d.store.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history", "error", err)
	}

	state, err := store.LoadSharedState()
	if err != nil {
		logger.Warn("failed to load shared state", "error", err)
		state = store.DefaultSharedState()
	}
	d.state = state

	renderer := newLogRenderer(d.loop, logger)
	d.tray = tray.New(d.loop, renderer, staticEnvironment{}, logger)
	d.tray.SetLimits(trayLimits(cfg))
	d.summarizer = lockscreen.New(logger)
	d.audio = audio.NewManager(cfg, logger)

	return d, nil
}

// Store exposes the history store, for tests and embedders.
func (d *Daemon) Store() *store.Store { return d.store }

// Run connects to the session bus, claims the notification name, and
// serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	go d.loop.Run(loopCtx)

	conn, err := godbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	d.names, err = dbus.NewNameWatcher(conn, d.log)
	if err != nil {
		return fmt.Errorf("failed to watch bus names: %w", err)
	}

	cfg := d.config()
	d.bridge = bridge.New(d.loop, newDesktopResolver(d.log), d.names, cfg.PolicyLookup(), bridge.ServerInfo{
		Name:    cfg.Server.Name,
		Vendor:  cfg.Server.Vendor,
		Version: d.version,
	}, d.log)
	d.bridge.SetSourceCap(cfg.Tray.MaxPerSource)
	d.server = dbus.NewServer(d.bridge, d.log)
	d.notifier = NewInternalNotifier(d.bridge, d.log)

	d.bridge.SetClosedHandler(func(id, reason uint32) {
		if err := d.server.EmitNotificationClosed(id, reason); err != nil {
			d.log.Warn("failed to emit NotificationClosed", "id", id, "error", err)
		}
		go d.recordClosed(id, reason)
	})
	d.bridge.SetActionHandler(func(id uint32, actionKey string) {
		if err := d.server.EmitActionInvoked(id, actionKey); err != nil {
			d.log.Warn("failed to emit ActionInvoked", "id", id, "error", err)
		}
	})
	d.bridge.SetPostedHandler(func(p bridge.Posted) {
		go d.recordPosted(p)
	})
	d.bridge.SourceRegistered.Connect(func(s *notify.Source) {
		d.tray.Add(s)
		d.summarizer.Watch(s)
	})

	if err := d.audio.Start(ctx); err != nil {
		d.log.Warn("audio unavailable, sounds disabled", "error", err)
	}

	d.applyDnD()
	d.startWatchers()

	if err := d.server.Start(); err != nil {
		d.stopWatchers()
		d.names.Close()
		d.audio.Stop()
		return err
	}
	d.log.Info("notification daemon running",
		"name", cfg.Server.Name,
		"history", cfg.History.Enabled,
		"dnd", cfg.DND.Enabled)

	<-ctx.Done()

	// The server must stop before the loop: a Notify call arriving after
	// loop shutdown would block forever waiting for a discarded post.
	if err := d.server.Stop(); err != nil {
		d.log.Warn("error stopping dbus server", "error", err)
	}
	d.stopWatchers()
	d.names.Close()
	d.audio.Stop()
	d.loop.Stop()
	cancelLoop()

	d.stateMu.Lock()
	if err := store.SaveSharedState(d.state); err != nil {
		d.log.Warn("failed to save shared state", "error", err)
	}
	d.stateMu.Unlock()

	if err := d.store.Close(); err != nil {
		d.log.Warn("error closing history store", "error", err)
	}
	return nil
}

func (d *Daemon) config() *config.DaemonConfig {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

func (d *Daemon) startWatchers() {
	cfgWatcher, err := config.NewWatcher(config.DaemonConfigPath(), d.onConfigReload)
	if err == nil {
		err = cfgWatcher.Start()
	}
	if err != nil {
		d.log.Warn("config hot reload disabled", "error", err)
	} else {
		d.cfgWatcher = cfgWatcher
	}

	d.stateWatcher = NewStateWatcher(d.log, func(state *store.SharedState) {
		d.stateMu.Lock()
		d.state = state
		d.stateMu.Unlock()
		d.applyDnD()
	})
	d.stateWatcher.Start()

	fileWatcher, err := store.NewHistoryWatcher(d.store, d.config().HistoryPath(), d.log)
	if err == nil {
		err = fileWatcher.Start()
	}
	if err != nil {
		d.log.Warn("history file watching disabled", "error", err)
	} else {
		d.fileWatcher = fileWatcher
	}
}

func (d *Daemon) stopWatchers() {
	if d.cfgWatcher != nil {
		d.cfgWatcher.Stop()
	}
	if d.stateWatcher != nil {
		d.stateWatcher.Stop()
	}
	if d.fileWatcher != nil {
		d.fileWatcher.Stop()
	}
}

func (d *Daemon) onConfigReload(cfg *config.DaemonConfig) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()

	d.audio.UpdateConfig(cfg)
	d.store.SetMaxEntries(cfg.History.MaxEntries)
	d.bridge.SetPolicyLookup(cfg.PolicyLookup())
	d.bridge.SetSourceCap(cfg.Tray.MaxPerSource)
	limits := trayLimits(cfg)
	d.loop.Post(func() { d.tray.SetLimits(limits) })
	if d.logLevel != nil {
		d.logLevel.Set(parseLogLevel(cfg.Logging.Level))
	}
	d.applyDnD()
	d.loop.Post(func() { d.summarizer.Refresh() })

	d.log.Info("configuration reloaded")
	d.notifier.Notify("config-reloaded", notify.UrgencyLow,
		"Configuration reloaded", "")
}

// applyDnD reconciles the banner block with the config switch and the
// shared-state toggle. Either one engages it.
func (d *Daemon) applyDnD() {
	cfg := d.config()
	d.stateMu.Lock()
	stateDnD := d.state.DnDEnabled
	d.stateMu.Unlock()

	blocked := cfg.DND.Enabled || stateDnD
	bypass := cfg.DND.CriticalBypass
	d.loop.Post(func() {
		d.tray.SetCriticalBypass(bypass)
		d.tray.SetBannerBlocked(blocked)
	})
}

// recordPosted appends the notification to history and plays its sound.
// Runs off the control loop.
func (d *Daemon) recordPosted(p bridge.Posted) {
	cfg := d.config()

	appID := p.Hints.DesktopEntry
	if appID == "" {
		appID = p.AppName
	}
	policy := cfg.PolicyLookup().PolicyForApp(appID)

	if err := d.audio.PlayForNotification(audio.Request{
		Urgency:   recordUrgency(p.Urgency),
		SoundFile: p.Hints.SoundFile,
		SoundName: p.Hints.SoundName,
		Suppress:  p.Hints.SuppressSound,
		Muted:     !policy.EnableSound,
	}); err != nil {
		d.log.Debug("notification sound failed", "error", err)
	}

	if cfg.History.Enabled && !p.Hints.Transient {
		rec, err := model.NewRecord()
		if err != nil {
			d.log.Warn("failed to create history record", "error", err)
			return
		}
		rec.BusID = p.ID
		rec.AppName = p.AppName
		rec.Summary = p.Summary
		rec.Body = p.Body
		rec.SetUrgency(recordUrgency(p.Urgency))
		rec.DesktopEntry = p.Hints.DesktopEntry
		rec.Resident = p.Resident
		rec.SoundName = p.Hints.SoundName
		rec.SoundFile = p.Hints.SoundFile
		rec.EnsureContentHash()
		if err := d.store.Add(*rec); err != nil {
			d.log.Warn("failed to record notification", "error", err)
			d.notifier.Warn("history-write",
				"Notification history unavailable",
				"Recent notifications are not being saved: "+err.Error())
		}
	}

	d.stateMu.Lock()
	d.state.UpdateLastNotification()
	if err := store.SaveSharedState(d.state); err != nil {
		d.log.Debug("failed to save shared state", "error", err)
	}
	d.stateMu.Unlock()
}

// recordClosed stamps the close reason on the history record, if any.
// Runs off the control loop.
func (d *Daemon) recordClosed(id, reason uint32) {
	if !d.config().History.Enabled {
		return
	}
	if err := d.store.MarkClosed(id, reason); err != nil {
		d.log.Debug("failed to mark record closed", "id", id, "error", err)
	}
}

// SetLocked forwards the session lock state to the tray and is safe to
// call from any goroutine.
func (d *Daemon) SetLocked(locked bool) {
	d.loop.Post(func() {
		if locked {
			d.tray.Lock()
		} else {
			d.tray.Unlock()
		}
	})
}

// LockScreenEntries returns the per-source summary shown while locked.
func (d *Daemon) LockScreenEntries() []lockscreen.Entry {
	return d.summarizer.Entries()
}

// recordUrgency collapses the four-tier internal urgency onto the
// three-tier wire scale used by history records.
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

// trayLimits maps the configured caps and timeouts onto the tray's
// override struct.
func trayLimits(cfg *config.DaemonConfig) tray.Limits {
	return tray.Limits{
		MaxQueue:      cfg.Tray.MaxQueue,
		NormalTimeout: cfg.Tray.Timeouts.Normal.Std(),
		HighTimeout:   cfg.Tray.Timeouts.High.Std(),
	}
}

func parseLogLevel(level string) slog.Level {
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
