package dbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/bridge"
	"github.com/graylag/shelltray/internal/notify"
)

func bridgeParse(t *testing.T, raw map[string]interface{}) bridge.Hints {
	t.Helper()
	return bridge.ParseHints(raw)
}

func TestUnpackHintsScalars(t *testing.T) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(2)),
		"desktop-entry": dbus.MakeVariant("org.example.Mail"),
		"resident":      dbus.MakeVariant(true),
	}

	raw := unpackHints(hints)
	assert.Equal(t, byte(2), raw["urgency"])
	assert.Equal(t, "org.example.Mail", raw["desktop-entry"])
	assert.Equal(t, true, raw["resident"])
}

func TestUnpackHintsNestedVariant(t *testing.T) {
	hints := map[string]dbus.Variant{
		"image-path": dbus.MakeVariant(dbus.MakeVariant("/tmp/a.png")),
	}
	raw := unpackHints(hints)
	assert.Equal(t, "/tmp/a.png", raw["image-path"])
}

func TestUnpackHintsImageStruct(t *testing.T) {
	img := []interface{}{
		int32(2), int32(2), int32(8), false, int32(8), int32(3),
		[]byte{1, 2, 3},
	}
	hints := map[string]dbus.Variant{
		"image-data": dbus.MakeVariant(img),
	}

	raw := unpackHints(hints)
	parsed := bridgeParse(t, raw)
	require.NotNil(t, parsed.ImageData)
	assert.Equal(t, []byte{1, 2, 3}, parsed.ImageData.Data)
	assert.Equal(t, int32(2), parsed.ImageData.Width)
}

func TestUnpackHintsRoundTripsThroughParser(t *testing.T) {
	hints := map[string]dbus.Variant{
		"urgency":               dbus.MakeVariant(byte(0)),
		"x-gnome-privacy-scope": dbus.MakeVariant("system"),
		"transient":             dbus.MakeVariant(true),
	}

	parsed := bridgeParse(t, unpackHints(hints))
	assert.Equal(t, notify.UrgencyLow, parsed.Urgency)
	assert.Equal(t, notify.ScopeSystem, parsed.PrivacyScope)
	assert.True(t, parsed.Transient)
}
