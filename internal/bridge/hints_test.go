package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graylag/shelltray/internal/notify"
)

func TestParseHintsDefaults(t *testing.T) {
	h := ParseHints(map[string]interface{}{})
	assert.Equal(t, notify.UrgencyNormal, h.Urgency)
	assert.Equal(t, notify.ScopeUser, h.PrivacyScope)
	assert.False(t, h.Resident)
	assert.False(t, h.Transient)
}

func TestParseHintsUrgency(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want notify.Urgency
	}{
		{"low byte", byte(0), notify.UrgencyLow},
		{"normal byte", byte(1), notify.UrgencyNormal},
		{"critical byte", byte(2), notify.UrgencyCritical},
		{"critical uint32", uint32(2), notify.UrgencyCritical},
		{"out of range ignored", byte(9), notify.UrgencyNormal},
		{"wrong type ignored", "high", notify.UrgencyNormal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := ParseHints(map[string]interface{}{"urgency": tc.raw})
			assert.Equal(t, tc.want, h.Urgency)
		})
	}
}

func TestParseHintsLegacyImageKeys(t *testing.T) {
	img := []interface{}{int32(2), int32(2), int32(8), false, int32(8), int32(3), []byte{1, 2, 3}}

	h := ParseHints(map[string]interface{}{"image_path": "/tmp/a.png"})
	assert.Equal(t, "/tmp/a.png", h.ImagePath)

	h = ParseHints(map[string]interface{}{
		"image-path": "/tmp/new.png",
		"image_path": "/tmp/old.png",
	})
	assert.Equal(t, "/tmp/new.png", h.ImagePath, "1.2 key wins over 1.1 key")

	h = ParseHints(map[string]interface{}{"image_data": img})
	require.NotNil(t, h.ImageData)
	assert.Equal(t, []byte{1, 2, 3}, h.ImageData.Data)

	h = ParseHints(map[string]interface{}{"icon_data": img})
	require.NotNil(t, h.ImageData, "icon_data accepted when nothing newer is present")

	h = ParseHints(map[string]interface{}{
		"icon_data":  img,
		"image-path": "/tmp/a.png",
	})
	assert.Nil(t, h.ImageData, "icon_data ignored when an image path is given")
}

func TestParseHintsImageDataShape(t *testing.T) {
	raw := []interface{}{int32(4), int32(4), int32(16), true, int32(8), int32(4), []byte{9}}
	h := ParseHints(map[string]interface{}{"image-data": raw})
	require.NotNil(t, h.ImageData)
	assert.Equal(t, int32(4), h.ImageData.Width)
	assert.True(t, h.ImageData.HasAlpha)

	h = ParseHints(map[string]interface{}{"image-data": []interface{}{int32(4)}})
	assert.Nil(t, h.ImageData, "malformed image struct is ignored")
}

func TestParseHintsFlagsAndScope(t *testing.T) {
	h := ParseHints(map[string]interface{}{
		"resident":              true,
		"transient":             true,
		"x-gnome-privacy-scope": "system",
		"desktop-entry":         "org.example.Mail",
		"x-shell-sender":        ":1.42",
		"x-shell-sender-pid":    uint32(4321),
		"suppress-sound":        true,
		"sound-name":            "message-new-instant",
	})
	assert.True(t, h.Resident)
	assert.True(t, h.Transient)
	assert.Equal(t, notify.ScopeSystem, h.PrivacyScope)
	assert.Equal(t, "org.example.Mail", h.DesktopEntry)
	assert.Equal(t, ":1.42", h.Sender)
	assert.Equal(t, uint32(4321), h.SenderPID)
	assert.True(t, h.SuppressSound)
	assert.Equal(t, "message-new-instant", h.SoundName)
}

func TestParseHintsUnknownKeysIgnored(t *testing.T) {
	h := ParseHints(map[string]interface{}{
		"x-vendor-weird": struct{}{},
		"category":       "im.received",
	})
	assert.Equal(t, notify.UrgencyNormal, h.Urgency)
}

func TestIconForRef(t *testing.T) {
	assert.Equal(t, notify.FileIcon("/tmp/a.png"), iconForRef("file:///tmp/a.png"))
	assert.Equal(t, notify.FileIcon("/tmp/b.png"), iconForRef("/tmp/b.png"))
	assert.Equal(t, notify.ThemedIcon("mail-unread"), iconForRef("mail-unread"))
	assert.Equal(t, notify.ThemedIcon(fallbackIconName), iconForRef(""))
}
