// ratelimit.go tracks server-imposed backoff from 429 responses.

package rollnotify

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryAfter = 60 * time.Second
	// maxRetryAfter caps server-supplied backoff.
	maxRetryAfter = 24 * time.Hour
)

// retryGate blocks sending until a Retry-After deadline passes.
type retryGate struct {
	mu            sync.Mutex
	disabledUntil time.Time
	logger        *zap.Logger
}

func newRetryGate(logger *zap.Logger) *retryGate {
	return &retryGate{logger: logger}
}

// blocked returns the deadline and true while sending is disabled.
func (g *retryGate) blocked(now time.Time) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Before(g.disabledUntil) {
		return g.disabledUntil, true
	}
	return time.Time{}, false
}

// apply parses a Retry-After value, either seconds or an HTTP date. A past
// date clears the backoff. Longer waits are capped at maxRetryAfter. An
// unparseable value disables sending for one minute.
func (g *retryGate) apply(header string, now time.Time) time.Time {
	until := now.Add(defaultRetryAfter)
	header = strings.TrimSpace(header)
	if seconds, err := strconv.ParseInt(header, 10, 64); err == nil && seconds >= 0 {
		backoff := maxRetryAfter
		if seconds < int64(maxRetryAfter/time.Second) {
			backoff = time.Duration(seconds) * time.Second
		}
		until = now.Add(backoff)
	} else if at, err := time.Parse(time.RFC1123, header); err == nil {
		switch {
		case at.Before(now):
			until = now
		case at.Sub(now) > maxRetryAfter:
			until = now.Add(maxRetryAfter)
		default:
			until = at
		}
	} else {
		g.logger.Warn("unparseable Retry-After header, using default",
			zap.String("header", header),
			zap.Duration("backoff", defaultRetryAfter))
	}

	g.mu.Lock()
	if until.After(g.disabledUntil) {
		g.disabledUntil = until
	}
	g.mu.Unlock()

	g.logger.Warn("ingestion API rate limit applied", zap.Time("disabled_until", until))
	return until
}
