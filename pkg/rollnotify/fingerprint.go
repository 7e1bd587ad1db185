// fingerprint.go generates stable hashes for grouping similar items.

package rollnotify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintFrames is the number of innermost frames that feed a fingerprint.
const fingerprintFrames = 3

// Fingerprint returns a grouping hash for item. Traces hash the exception
// classes and the innermost frame methods, ignoring messages and line numbers.
// Messages hash the level and the message text.
func Fingerprint(item *Item) string {
	if item == nil {
		return ""
	}

	var parts []string
	switch {
	case item.Body.Trace != nil:
		parts = traceParts(*item.Body.Trace)
	case len(item.Body.TraceChain) > 0:
		for _, t := range item.Body.TraceChain {
			parts = append(parts, traceParts(t)...)
		}
	case item.Body.Message != nil:
		parts = []string{string(item.Level), item.Body.Message.Body}
	default:
		return ""
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:16])
}

func traceParts(t Trace) []string {
	parts := []string{t.Exception.Class}
	for i := len(t.Frames) - 1; i >= 0 && len(parts) <= fingerprintFrames; i-- {
		if m := t.Frames[i].Method; m != "" && m != unknownMethod {
			parts = append(parts, m)
		}
	}
	return parts
}
