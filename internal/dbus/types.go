package dbus

import (
	"github.com/godbus/dbus/v5"
)

// unpackHints flattens a variant map into plain Go values. Variant structs
// (the image data hint) come out as []interface{} with their fields
// unwrapped one level, which is the shape the bridge's hint parser expects.
func unpackHints(hints map[string]dbus.Variant) map[string]interface{} {
	raw := make(map[string]interface{}, len(hints))
	for key, v := range hints {
		raw[key] = unpackValue(v.Value())
	}
	return raw
}

func unpackValue(v interface{}) interface{} {
	switch val := v.(type) {
	case dbus.Variant:
		return unpackValue(val.Value())
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = unpackValue(item)
		}
		return out
	default:
		return v
	}
}
