// scheduler.go decides when queued items are flushed.

package rollnotify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// scheduler triggers delivery after items are enqueued.
type scheduler interface {
	// notify is called after every enqueue.
	notify(ctx context.Context)
	// stop cancels pending work and returns without waiting. A batch
	// already being sent finishes on its own goroutine.
	stop()
}

func newScheduler(n *Notifier, mode HandlerMode, interval time.Duration) scheduler {
	switch mode {
	case ModeNextTick:
		return newNextTickScheduler(n)
	case ModeInline:
		return inlineScheduler{n: n}
	default:
		return newIntervalScheduler(n, interval)
	}
}

// intervalScheduler sends one batch per tick.
type intervalScheduler struct {
	done chan struct{}
	once sync.Once
}

func newIntervalScheduler(n *Notifier, interval time.Duration) *intervalScheduler {
	s := &intervalScheduler{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if _, err := n.flushOne(context.Background()); err != nil {
					n.logger.Debug("interval flush failed", zap.Error(err))
				}
			}
		}
	}()
	return s
}

func (s *intervalScheduler) notify(context.Context) {}

func (s *intervalScheduler) stop() {
	s.once.Do(func() { close(s.done) })
}

// nextTickScheduler drains the queue on a worker goroutine soon after each
// enqueue. Signals arriving while a drain is pending are coalesced.
type nextTickScheduler struct {
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newNextTickScheduler(n *Notifier) *nextTickScheduler {
	s := &nextTickScheduler{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.signal:
				if err := n.drain(context.Background()); err != nil {
					n.logger.Debug("deferred flush failed", zap.Error(err))
				}
			}
		}
	}()
	return s
}

func (s *nextTickScheduler) notify(context.Context) {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *nextTickScheduler) stop() {
	s.once.Do(func() { close(s.done) })
}

// inlineScheduler drains the queue on the reporting goroutine.
type inlineScheduler struct {
	n *Notifier
}

func (s inlineScheduler) notify(ctx context.Context) {
	if err := s.n.drain(context.WithoutCancel(ctx)); err != nil {
		s.n.logger.Debug("inline flush failed", zap.Error(err))
	}
}

func (inlineScheduler) stop() {}
