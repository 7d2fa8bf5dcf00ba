package daemon

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
)

// desktopResolver maps notify requests to a desktop entry id. The
// desktop-entry hint wins when present; otherwise the declared app name
// is matched against the installed .desktop files. The index is built
// once on first use; a headless daemon has no focus tracking.
type desktopResolver struct {
	log *slog.Logger

	mu     sync.Mutex
	index  map[string]string
	loaded bool
}

func newDesktopResolver(log *slog.Logger) *desktopResolver {
	return &desktopResolver{log: log}
}

func (r *desktopResolver) ResolveApp(pid uint32, desktopEntry, appName string) string {
	if desktopEntry != "" {
		return strings.TrimSuffix(desktopEntry, ".desktop")
	}
	if appName == "" {
		return ""
	}
	return r.lookup(appName)
}

func (r *desktopResolver) FocusedApp() string { return "" }

func (r *desktopResolver) lookup(appName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.index = buildDesktopIndex()
		r.loaded = true
		r.log.Debug("desktop entry index built", "entries", len(r.index))
	}
	return r.index[strings.ToLower(appName)]
}

// buildDesktopIndex scans the XDG application directories and keys each
// desktop entry id by its lowercased basename and last id segment, so
// both "firefox" and "org.mozilla.firefox" style app names match.
func buildDesktopIndex() map[string]string {
	index := make(map[string]string)
	dirs := append([]string{xdg.DataHome}, xdg.DataDirs...)
	for _, dir := range dirs {
		entries, err := os.ReadDir(filepath.Join(dir, "applications"))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".desktop") {
				continue
			}
			id := strings.TrimSuffix(name, ".desktop")
			keys := []string{strings.ToLower(id)}
			if i := strings.LastIndex(id, "."); i >= 0 {
				keys = append(keys, strings.ToLower(id[i+1:]))
			}
			for _, key := range keys {
				if _, ok := index[key]; !ok {
					index[key] = id
				}
			}
		}
	}
	return index
}
