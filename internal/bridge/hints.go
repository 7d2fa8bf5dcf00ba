package bridge

import (
	"github.com/graylag/shelltray/internal/notify"
)

// Wire-level urgency values. The wire protocol knows only three tiers.
const (
	wireUrgencyLow      = 0
	wireUrgencyNormal   = 1
	wireUrgencyCritical = 2
)

// ImageData is the raw image hint payload: pixel data plus layout.
type ImageData struct {
	Width         int32
	Height        int32
	RowStride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// Hints is the normalized view of a notify request's hint map.
type Hints struct {
	Urgency      notify.Urgency
	ImageData    *ImageData
	ImagePath    string
	Resident     bool
	Transient    bool
	PrivacyScope notify.PrivacyScope

	DesktopEntry string
	Sender       string
	SenderPID    uint32

	SuppressSound bool
	SoundName     string
	SoundFile     string
}

// ParseHints normalizes a raw hint map. Legacy key variants for image data
// and image path are merged into the canonical keys, urgency defaults to
// normal, and unrecognized hints are ignored.
func ParseHints(raw map[string]interface{}) Hints {
	h := Hints{
		Urgency:      notify.UrgencyNormal,
		PrivacyScope: notify.ScopeUser,
	}

	if v, ok := hintUint(raw, "urgency"); ok {
		switch v {
		case wireUrgencyLow:
			h.Urgency = notify.UrgencyLow
		case wireUrgencyNormal:
			h.Urgency = notify.UrgencyNormal
		case wireUrgencyCritical:
			h.Urgency = notify.UrgencyCritical
		}
	}

	// image-path and image-data are the 1.2 names; image_path and
	// image_data come from 1.1, and icon_data from earlier revisions.
	// icon_data applies only when no image path was given.
	h.ImagePath, _ = hintString(raw, "image-path")
	if h.ImagePath == "" {
		h.ImagePath, _ = hintString(raw, "image_path")
	}
	h.ImageData = hintImage(raw, "image-data")
	if h.ImageData == nil {
		h.ImageData = hintImage(raw, "image_data")
		if h.ImageData == nil && h.ImagePath == "" {
			h.ImageData = hintImage(raw, "icon_data")
		}
	}

	h.Resident, _ = hintBool(raw, "resident")
	h.Transient, _ = hintBool(raw, "transient")

	if scope, ok := hintString(raw, "x-gnome-privacy-scope"); ok && scope == "system" {
		h.PrivacyScope = notify.ScopeSystem
	}

	h.DesktopEntry, _ = hintString(raw, "desktop-entry")
	h.Sender, _ = hintString(raw, "x-shell-sender")
	if pid, ok := hintUint(raw, "x-shell-sender-pid"); ok {
		h.SenderPID = uint32(pid)
	}

	h.SuppressSound, _ = hintBool(raw, "suppress-sound")
	h.SoundName, _ = hintString(raw, "sound-name")
	h.SoundFile, _ = hintString(raw, "sound-file")

	return h
}

func hintString(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key].(string)
	return v, ok
}

func hintBool(raw map[string]interface{}, key string) (bool, bool) {
	v, ok := raw[key].(bool)
	return v, ok
}

// hintUint accepts the integer shapes callers put on the wire for numeric
// hints.
func hintUint(raw map[string]interface{}, key string) (uint64, bool) {
	switch v := raw[key].(type) {
	case byte:
		return uint64(v), true
	case int16:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case int32:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// hintImage decodes the iiibiiay image struct. Both []interface{} (generic
// decoding) and the typed struct shape are accepted.
func hintImage(raw map[string]interface{}, key string) *ImageData {
	fields, ok := raw[key].([]interface{})
	if !ok || len(fields) != 7 {
		return nil
	}
	width, ok1 := toInt32(fields[0])
	height, ok2 := toInt32(fields[1])
	rowStride, ok3 := toInt32(fields[2])
	hasAlpha, ok4 := fields[3].(bool)
	bits, ok5 := toInt32(fields[4])
	channels, ok6 := toInt32(fields[5])
	data, ok7 := fields[6].([]byte)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 {
		return nil
	}
	return &ImageData{
		Width:         width,
		Height:        height,
		RowStride:     rowStride,
		HasAlpha:      hasAlpha,
		BitsPerSample: bits,
		Channels:      channels,
		Data:          data,
	}
}

func toInt32(v interface{}) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case uint32:
		return int32(n), true
	case int:
		return int32(n), true
	default:
		return 0, false
	}
}
