package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/notify"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "48h", cfg.Filter.Since)
	assert.Equal(t, 0, cfg.Filter.Limit)
	assert.Equal(t, "timestamp", cfg.Sort.Field)
	assert.Equal(t, "desc", cfg.Sort.Order)
	assert.Equal(t, "shelltray", cfg.Send.AppName)
	assert.Equal(t, "normal", cfg.Send.Urgency)
	assert.NotEmpty(t, cfg.Templates.List)
	assert.NotEmpty(t, cfg.Templates.Full)
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Filter.Since, cfg.Filter.Since)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[filter]
since = "24h"
limit = 100

[sort]
field = "app"
order = "asc"

[send]
urgency = "critical"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "24h", cfg.Filter.Since)
	assert.Equal(t, 100, cfg.Filter.Limit)
	assert.Equal(t, "app", cfg.Sort.Field)
	assert.Equal(t, "asc", cfg.Sort.Order)
	assert.Equal(t, "critical", cfg.Send.Urgency)
	// Untouched sections keep their defaults
	assert.Equal(t, "shelltray", cfg.Send.AppName)
	assert.Equal(t, DefaultListTmpl, cfg.Templates.List)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Filter.Since = "12h"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "12h", loaded.Filter.Since)
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "5s", 5 * time.Second, false},
		{"compound", "1h30m", 90 * time.Minute, false},
		{"integer milliseconds", "4000", 4 * time.Second, false},
		{"zero", "0", 0, false},
		{"garbage", "soonish", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestDefaultDaemonConfig(t *testing.T) {
	cfg := DefaultDaemonConfig()

	assert.Equal(t, "shelltrayd", cfg.Server.Name)
	assert.Equal(t, 3, cfg.Tray.MaxQueue)
	assert.Equal(t, 3, cfg.Tray.MaxPerSource)
	assert.Equal(t, 4*time.Second, cfg.Tray.Timeouts.Normal.Std())
	assert.Equal(t, 4*time.Second, cfg.Tray.Timeouts.High.Std())
	assert.True(t, cfg.Sound.Enabled)
	assert.Equal(t, 80, cfg.Sound.Volume)
	assert.False(t, cfg.DND.Enabled)
	assert.True(t, cfg.DND.CriticalBypass)
	assert.True(t, cfg.History.Enabled)
	assert.True(t, cfg.Policy.Default.Enable)
	assert.True(t, cfg.Policy.Default.ShowBanners)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDaemonConfigFrom_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelltrayd.toml")

	content := `
[sound]
volume = 40

[dnd]
enabled = true
critical_bypass = false

[policy.apps."org.example.Mail"]
enable = true
show_banners = false
show_in_lock_screen = true
details_in_lock_screen = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadDaemonConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Sound.Volume)
	assert.True(t, cfg.Sound.Enabled, "untouched key keeps default")
	assert.True(t, cfg.DND.Enabled)
	assert.False(t, cfg.DND.CriticalBypass)
	require.Contains(t, cfg.Policy.Apps, "org.example.Mail")
	assert.False(t, cfg.Policy.Apps["org.example.Mail"].ShowBanners)
}

func TestLoadDaemonConfigFrom_MissingFile(t *testing.T) {
	cfg, err := LoadDaemonConfigFrom("/nonexistent/shelltrayd.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonConfig().Sound.Volume, cfg.Sound.Volume)
}

func TestLoadDaemonConfigFrom_InvalidRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelltrayd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sound]\nvolume = 250\n"), 0600))

	_, err := LoadDaemonConfigFrom(path)
	assert.Error(t, err)
}

func TestDaemonConfig_Validate(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Logging.Level = "chatty"
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.History.MaxEntries = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.Tray.MaxQueue = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultDaemonConfig()
	cfg.Tray.MaxPerSource = -1
	assert.Error(t, cfg.Validate())
}

func TestDaemonConfig_PolicyLookup(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Policy.Apps = map[string]PolicyConfig{
		"org.example.Chat": {Enable: true, ShowBanners: false},
	}

	lookup := cfg.PolicyLookup()

	chat := lookup.PolicyForApp("org.example.Chat")
	require.NotNil(t, chat)
	assert.True(t, chat.Enable)
	assert.False(t, chat.ShowBanners)

	other := lookup.PolicyForApp("org.example.Else")
	require.NotNil(t, other)
	assert.True(t, other.ShowBanners, "unknown app falls back to default policy")
}

func TestDaemonConfig_SoundForUrgency(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Sound.Sounds = SoundSet{
		Low:      "/s/low.wav",
		Normal:   "/s/normal.wav",
		Critical: "/s/critical.wav",
	}

	assert.Equal(t, "/s/low.wav", cfg.SoundForUrgency(notify.UrgencyLow))
	assert.Equal(t, "/s/normal.wav", cfg.SoundForUrgency(notify.UrgencyNormal))
	assert.Equal(t, "/s/critical.wav", cfg.SoundForUrgency(notify.UrgencyCritical))
}

func TestDaemonConfig_HistoryPathOverride(t *testing.T) {
	cfg := DefaultDaemonConfig()
	assert.Contains(t, cfg.HistoryPath(), "shelltray")

	cfg.History.Path = "/tmp/custom.jsonl"
	assert.Equal(t, "/tmp/custom.jsonl", cfg.HistoryPath())
}
