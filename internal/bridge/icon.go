package bridge

import (
	"strings"

	"github.com/graylag/shelltray/internal/notify"
)

const fallbackIconName = "dialog-information-symbolic"

// iconForRef resolves an icon reference string: a file URI, an absolute
// path, or a themed icon name. An empty reference falls back to a generic
// informational icon.
func iconForRef(ref string) notify.Icon {
	switch {
	case ref == "":
		return notify.ThemedIcon(fallbackIconName)
	case strings.HasPrefix(ref, "file://"):
		return notify.FileIcon(strings.TrimPrefix(ref, "file://"))
	case strings.HasPrefix(ref, "/"):
		return notify.FileIcon(ref)
	default:
		return notify.ThemedIcon(ref)
	}
}

// imageFromHints resolves the notification image with inline data taking
// priority over an image path. The zero icon means no image hint was given.
func imageFromHints(h Hints) notify.Icon {
	if h.ImageData != nil {
		return notify.ImageIcon(h.ImageData.Data)
	}
	if h.ImagePath != "" {
		return iconForRef(h.ImagePath)
	}
	return notify.Icon{}
}
