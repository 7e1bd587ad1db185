// scrubber.go masks sensitive request fields and headers, and optionally
// redacts secrets from report messages.

package rollnotify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// MaskChar replaces each character of a scrubbed value.
const MaskChar = '*'

// DefaultScrubFields are the parameter names masked when none are configured.
var DefaultScrubFields = []string{"passwd", "password", "secret", "confirm_password", "password_confirmation"}

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// Fields are parameter names to mask. Matching is exact.
	Fields []string

	// Headers are header names to mask. Matching ignores case.
	Headers []string

	// ScrubMessages redacts secrets and PII from message bodies and exception messages.
	ScrubMessages bool

	// MaxMessageSize truncates messages when ScrubMessages is set (default: 4096).
	MaxMessageSize int
}

// DefaultScrubberConfig returns the default field list, no headers and no
// message redaction.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		Fields:         append([]string{}, DefaultScrubFields...),
		MaxMessageSize: 4096,
	}
}

// Compiled once; applied in order by ScrubMessage.
var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-\.=]+`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)gh[po]_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)xox[baprs]-[a-zA-Z0-9\-]{10,}`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),

	// Credentials
	regexp.MustCompile(`(?i)(password|passwd|secret|credential)[=:\s]+['"]?[^\s'",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

// Scrubber masks configured fields and headers.
type Scrubber struct {
	cfg     ScrubberConfig
	fields  map[string]struct{}
	headers map[string]struct{}
}

// NewScrubber creates a scrubber from cfg.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	return &Scrubber{
		cfg:     cfg,
		fields:  lo.SliceToMap(cfg.Fields, func(f string) (string, struct{}) { return f, struct{}{} }),
		headers: lo.SliceToMap(cfg.Headers, func(h string) (string, struct{}) { return strings.ToLower(h), struct{}{} }),
	}
}

// ScrubHeaders returns a copy of headers with every header named in names
// masked. Names compare case-insensitively.
func ScrubHeaders(names []string, headers map[string]string) map[string]string {
	return NewScrubber(ScrubberConfig{Headers: names}).ScrubHeaders(headers)
}

// ScrubParams returns a copy of params with every key in names masked.
func ScrubParams(names []string, params map[string]any) map[string]any {
	return NewScrubber(ScrubberConfig{Fields: names}).ScrubParams(params)
}

// ScrubHeaders masks the configured headers in a copy of headers.
func (s *Scrubber) ScrubHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := s.headers[strings.ToLower(k)]; ok && v != "" {
			out[k] = mask(utf8.RuneCountInString(v))
			continue
		}
		out[k] = v
	}
	return out
}

// ScrubParams masks the configured fields in a copy of params. Nil and empty
// values are left as they are.
func (s *Scrubber) ScrubParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if _, ok := s.fields[k]; ok {
			out[k] = maskValue(v)
			continue
		}
		out[k] = v
	}
	return out
}

// ScrubMessage redacts secrets from msg when message scrubbing is enabled.
func (s *Scrubber) ScrubMessage(msg string) string {
	if !s.cfg.ScrubMessages || msg == "" {
		return msg
	}
	msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, "[REDACTED]")
	}
	return msg
}

// ScrubItem applies message redaction to an item's body.
func (s *Scrubber) ScrubItem(item *Item) {
	if !s.cfg.ScrubMessages || item == nil {
		return
	}
	if item.Body.Message != nil {
		item.Body.Message.Body = s.ScrubMessage(item.Body.Message.Body)
	}
	if item.Body.Trace != nil {
		item.Body.Trace.Exception.Message = s.ScrubMessage(item.Body.Trace.Exception.Message)
	}
	for i := range item.Body.TraceChain {
		item.Body.TraceChain[i].Exception.Message = s.ScrubMessage(item.Body.TraceChain[i].Exception.Message)
	}
	item.Title = s.ScrubMessage(item.Title)
}

func maskValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return x
		}
		return mask(utf8.RuneCountInString(x))
	case []string:
		if len(x) == 0 {
			return x
		}
		return lo.Map(x, func(e string, _ int) string {
			if e == "" {
				return e
			}
			return mask(utf8.RuneCountInString(e))
		})
	default:
		str := fmt.Sprint(x)
		if str == "" {
			return x
		}
		return mask(utf8.RuneCountInString(str))
	}
}

func mask(n int) string {
	return strings.Repeat(string(MaskChar), n)
}

// truncateWithMarker truncates s to maxLen bytes, ending with a marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	marker := "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return marker[:maxLen]
	}
	cut := maxLen - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
