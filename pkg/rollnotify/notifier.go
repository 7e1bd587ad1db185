// notifier.go implements the reporting queue and its lifecycle.

package rollnotify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateShutdown
)

// Callback receives the outcome of one report. item is nil when the report
// was rejected before assembly. resp is nil unless the transport replied.
type Callback func(item *Item, resp *Response, err error)

type queuedItem struct {
	item *Item
	cb   Callback
}

// Notifier queues items and delivers them through a Transport. The zero
// value is not usable; create one with New and call Init.
type Notifier struct {
	mu       sync.Mutex
	state    state
	settings Settings
	queue    []queuedItem
	inFlight int // batches taken from the queue whose callbacks have not returned
	posting  int // batches still inside Transport.PostItems
	sched    scheduler

	// changed is closed and replaced whenever the queue or the counters
	// shrink, waking goroutines in waitUntil.
	changed chan struct{}

	// flushMu serializes dequeue-and-post so batches leave in queue order.
	flushMu sync.Mutex

	builder *payloadBuilder
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *Metrics
}

// New returns an uninitialized notifier.
func New() *Notifier {
	return &Notifier{logger: zap.NewNop(), changed: make(chan struct{})}
}

// Init configures the notifier and starts its scheduler. Calling Init on an
// initialized notifier is a no-op; the first configuration stays active.
func (n *Notifier) Init(accessToken string, opts ...Option) error {
	const op = "init"

	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case stateInitialized:
		n.logger.Debug("notifier already initialized, ignoring init")
		return nil
	case stateShutdown:
		return &Error{Op: op, Kind: KindConfiguration, Err: ErrShutdown}
	}
	if accessToken == "" {
		return &Error{Op: op, Kind: KindConfiguration, Err: ErrMissingAccessToken}
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	s.AccessToken = accessToken
	if err := s.validate(); err != nil {
		return err
	}
	if s.Transport == nil {
		s.Transport = NewHTTPTransport(s.Endpoint, WithHTTPLogger(s.Logger))
	}

	n.settings = s
	n.logger = s.Logger
	n.metrics = s.Metrics
	n.builder = newPayloadBuilder(s)
	if s.ItemsPerMinute > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(float64(s.ItemsPerMinute)/60), s.ItemsPerMinute)
	}
	n.sched = newScheduler(n, s.Handler, s.HandlerInterval)
	n.state = stateInitialized

	n.logger.Info("notifier initialized",
		zap.String("environment", s.Environment),
		zap.String("endpoint", s.Endpoint),
		zap.String("handler", string(s.Handler)),
		zap.Int("batch_size", s.BatchSize))
	return nil
}

// Settings returns a copy of the active configuration.
func (n *Notifier) Settings() Settings {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.settings
}

// HandleError reports err at level error. The returned error covers
// enqueueing only; delivery results arrive through cb.
func (n *Notifier) HandleError(ctx context.Context, err error, req Request, cb Callback) error {
	return n.report(ctx, report{kind: kindError, op: "handle error", err: err, req: req, stack: callers(1)}, cb)
}

// HandleErrorWithPayloadData reports err with extra item fields. Known keys
// such as level, title, fingerprint, context, custom and person set the
// corresponding item field; other keys never replace reserved fields.
func (n *Notifier) HandleErrorWithPayloadData(ctx context.Context, err error, payload map[string]any, req Request, cb Callback) error {
	return n.report(ctx, report{kind: kindError, op: "handle error", err: err, payload: payload, req: req, stack: callers(1)}, cb)
}

// ReportMessage reports a plain message. An empty level defaults to error.
func (n *Notifier) ReportMessage(ctx context.Context, msg string, level Level, req Request, cb Callback) error {
	return n.report(ctx, report{kind: kindMessage, op: "report message", message: msg, level: level, req: req}, cb)
}

// ReportMessageWithPayloadData reports a message whose level comes from
// payload["level"], defaulting to error.
func (n *Notifier) ReportMessageWithPayloadData(ctx context.Context, msg string, payload map[string]any, req Request, cb Callback) error {
	return n.report(ctx, report{kind: kindMessage, op: "report message", message: msg, payload: payload, req: req}, cb)
}

func (n *Notifier) report(ctx context.Context, r report, cb Callback) error {
	n.mu.Lock()
	st, builder, limiter := n.state, n.builder, n.limiter
	n.mu.Unlock()

	if err := stateError(r.op, st); err != nil {
		return n.reject(cb, err)
	}
	if limiter != nil && !limiter.Allow() {
		n.metrics.incDropped("rate_limited")
		return n.reject(cb, &Error{Op: r.op, Kind: KindTransport, Err: ErrRateLimited})
	}

	item, buildErr := builder.build(ctx, r)
	if item == nil {
		return n.reject(cb, buildErr)
	}
	if buildErr != nil {
		n.logger.Warn("item assembled with errors", zap.String("uuid", item.UUID), zap.Error(buildErr))
	}

	n.mu.Lock()
	if err := stateError(r.op, n.state); err != nil {
		n.mu.Unlock()
		return n.reject(cb, err)
	}
	n.queue = append(n.queue, queuedItem{item: item, cb: cb})
	depth := len(n.queue)
	sched := n.sched
	n.mu.Unlock()

	n.metrics.incReported(item.Level)
	n.metrics.setQueueDepth(depth)
	sched.notify(ctx)
	return buildErr
}

func stateError(op string, st state) error {
	switch st {
	case stateUninitialized:
		return &Error{Op: op, Kind: KindConfiguration, Err: ErrUninitialized}
	case stateShutdown:
		return &Error{Op: op, Kind: KindConfiguration, Err: fmt.Errorf("%w: %w", ErrUninitialized, ErrShutdown)}
	}
	return nil
}

func (n *Notifier) reject(cb Callback, err error) error {
	n.invoke(cb, nil, nil, err)
	return err
}

func (n *Notifier) invoke(cb Callback, item *Item, resp *Response, err error) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("report callback panicked", zap.Any("panic", r))
		}
	}()
	cb(item, resp, err)
}

// PendingCount returns the number of items waiting in the queue.
func (n *Notifier) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Flush delivers every queued item, one batch per transport call, and
// returns the joined transport errors. Failed batches are not retried.
func (n *Notifier) Flush(ctx context.Context) error {
	n.mu.Lock()
	st := n.state
	n.mu.Unlock()
	if st == stateUninitialized {
		return &Error{Op: "flush", Kind: KindConfiguration, Err: ErrUninitialized}
	}
	return n.drain(ctx)
}

func (n *Notifier) drain(ctx context.Context) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		sent, err := n.flushOne(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if !sent {
			break
		}
	}
	return errors.Join(errs...)
}

type batchResult struct {
	batch   []queuedItem
	dropped []queuedItem
	resp    *Response
	err     error
}

// flushOne sends at most one batch and reports whether one was taken.
func (n *Notifier) flushOne(ctx context.Context) (bool, error) {
	n.flushMu.Lock()
	res := n.sendBatch(ctx)
	n.flushMu.Unlock()

	if res == nil {
		return false, nil
	}
	n.complete(res)
	return true, res.err
}

func (n *Notifier) sendBatch(ctx context.Context) *batchResult {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return nil
	}
	size := min(n.settings.BatchSize, len(n.queue))
	taken := n.queue[:size:size]
	n.queue = n.queue[size:]
	if len(n.queue) == 0 {
		n.queue = nil
	}
	remaining := len(n.queue)
	n.inFlight++
	n.posting++
	minimum := n.settings.MinimumLevel
	transport, token := n.settings.Transport, n.settings.AccessToken
	n.mu.Unlock()

	n.metrics.setQueueDepth(remaining)

	res := &batchResult{}
	for _, q := range taken {
		if levelGteMinimum(q.item.Level, minimum) {
			res.batch = append(res.batch, q)
		} else {
			res.dropped = append(res.dropped, q)
		}
	}
	defer n.donePosting()
	if len(res.batch) == 0 {
		return res
	}

	items := lo.Map(res.batch, func(q queuedItem, _ int) *Item { return q.item })
	res.resp, res.err = transport.PostItems(ctx, token, items)
	n.metrics.incBatches()
	if res.err != nil {
		n.metrics.addFailed(res.err, len(items))
		n.logger.Warn("batch delivery failed", zap.Int("items", len(items)), zap.Error(res.err))
	} else {
		n.metrics.addDelivered(len(items))
	}
	return res
}

func (n *Notifier) donePosting() {
	n.mu.Lock()
	n.posting--
	n.signalLocked()
	n.mu.Unlock()
}

func (n *Notifier) complete(res *batchResult) {
	defer func() {
		n.mu.Lock()
		n.inFlight--
		n.signalLocked()
		n.mu.Unlock()
	}()
	for _, q := range res.dropped {
		n.metrics.incDropped("below_minimum_level")
		n.invoke(q.cb, q.item, nil, &Error{Op: "flush", Kind: KindValidation, Err: ErrBelowMinimumLevel})
	}
	for _, q := range res.batch {
		n.invoke(q.cb, q.item, res.resp, res.err)
	}
}

// signalLocked wakes every waiter. n.mu must be held.
func (n *Notifier) signalLocked() {
	close(n.changed)
	n.changed = make(chan struct{})
}

// waitUntil blocks until cond holds or ctx is done. cond runs with n.mu held.
func (n *Notifier) waitUntil(ctx context.Context, cond func() bool) error {
	for {
		n.mu.Lock()
		if cond() {
			n.mu.Unlock()
			return nil
		}
		changed := n.changed
		n.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Wait blocks until the queue is empty and no batch is in flight, including
// items reported after Wait was called. Calling Wait from a Callback blocks
// until ctx is done, since the calling batch is still in flight.
func (n *Notifier) Wait(ctx context.Context) error {
	return n.waitUntil(ctx, func() bool {
		return len(n.queue) == 0 && n.inFlight == 0
	})
}

// ChangeHandler stops the current scheduler and starts one for mode. It
// does not wait for a batch the old scheduler is sending, so it is safe to
// call from a Callback.
func (n *Notifier) ChangeHandler(mode HandlerMode) error {
	const op = "change handler"
	if _, err := ParseHandlerMode(string(mode)); err != nil {
		return err
	}

	n.mu.Lock()
	if err := stateError(op, n.state); err != nil {
		n.mu.Unlock()
		return err
	}
	old := n.sched
	n.settings.Handler = mode
	n.sched = newScheduler(n, mode, n.settings.HandlerInterval)
	n.mu.Unlock()

	old.stop()
	n.logger.Debug("handler changed", zap.String("handler", string(mode)))
	return nil
}

// Shutdown switches to inline delivery, drains the queue and closes the
// transport once no batch is being posted. It may be called from a Callback;
// callbacks of other batches may still be running when it returns. The
// notifier cannot be reused afterwards.
func (n *Notifier) Shutdown(ctx context.Context) error {
	const op = "shutdown"

	n.mu.Lock()
	switch n.state {
	case stateUninitialized:
		n.mu.Unlock()
		return &Error{Op: op, Kind: KindConfiguration, Err: ErrUninitialized}
	case stateShutdown:
		n.mu.Unlock()
		return nil
	}
	n.state = stateShutdown
	old := n.sched
	n.settings.Handler = ModeInline
	n.sched = inlineScheduler{n: n}
	pending := len(n.queue)
	transport := n.settings.Transport
	n.mu.Unlock()

	old.stop()
	n.logger.Info("notifier shutting down", zap.Int("pending", pending))

	var errs []error
	if err := n.drain(ctx); err != nil {
		errs = append(errs, err)
	}
	err := n.waitUntil(ctx, func() bool {
		return len(n.queue) == 0 && n.posting == 0
	})
	if err != nil {
		errs = append(errs, err)
	}
	if err := transport.Close(); err != nil {
		errs = append(errs, &Error{Op: op, Kind: KindTransport, Err: err})
	}
	return errors.Join(errs...)
}
