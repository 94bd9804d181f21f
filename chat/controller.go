package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRetryDelay is how long the sync loop waits after a failed poll
// before trying again, to avoid hammering a failing endpoint.
const DefaultRetryDelay = 1500 * time.Millisecond

// DefaultSnapshotLimit is how many recent messages the initial snapshot
// requests.
const DefaultSnapshotLimit = 80

// Controller owns the synchronization lifecycle: one snapshot fetch to seed
// the view, then a single guarded sync loop over the active Transport, with
// error backoff and visibility-driven suspension. All watermark and view
// mutations flow through the controller, so batches are applied atomically
// and in arrival order.
type Controller struct {
	transport Transport
	view      *LogView
	wm        Watermark

	snapshotLimit int
	retryDelay    time.Duration

	ctx     context.Context
	looping atomic.Bool // sync loop single-flight guard
	stopped atomic.Bool // suspension flag; the loop exits after its in-flight call

	// pollMu serializes every AwaitNext round-trip (the loop's and the eager
	// post-send one) and the merge that follows it, enforcing the single
	// in-flight invariant.
	pollMu sync.Mutex

	mu      sync.Mutex // guards state, lastErr and the view accessors
	state   ConnState
	lastErr error

	onError func(error)
	onState func(ConnState)
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithRetryDelay overrides the post-failure poll delay.
func WithRetryDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.retryDelay = d }
}

// WithSnapshotLimit overrides the initial snapshot size.
func WithSnapshotLimit(n int) ControllerOption {
	return func(c *Controller) { c.snapshotLimit = n }
}

// WithErrorHandler registers the error-banner callback. It fires with the
// most recent unresolved problem and with nil when a later attempt clears it.
func WithErrorHandler(fn func(error)) ControllerOption {
	return func(c *Controller) { c.onError = fn }
}

// WithStateHandler registers the connectivity callback.
func WithStateHandler(fn func(ConnState)) ControllerOption {
	return func(c *Controller) { c.onState = fn }
}

// NewController builds a controller around a transport and a view. Nothing
// happens until Start.
func NewController(t Transport, view *LogView, opts ...ControllerOption) *Controller {
	c := &Controller{
		transport:     t,
		view:          view,
		snapshotLimit: DefaultSnapshotLimit,
		retryDelay:    DefaultRetryDelay,
		state:         StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches the initial snapshot and, on success, launches the sync
// loop. A snapshot failure is terminal: the error is surfaced and returned,
// and the controller does not retry it (steady-state sync does retry).
func (c *Controller) Start(ctx context.Context) error {
	c.ctx = ctx
	c.setState(StateConnecting)
	snap, err := c.transport.Snapshot(ctx, c.snapshotLimit)
	if err != nil {
		c.reportError(err)
		c.setState(StateDisconnected)
		return err
	}
	c.pollMu.Lock()
	c.mu.Lock()
	c.view.ReplaceAll(snap)
	c.mu.Unlock()
	c.wm.Advance(snap)
	c.pollMu.Unlock()
	c.setState(StateConnected)

	if n, ok := c.transport.(StateNotifier); ok {
		n.SetStateHandler(c.transportState)
	}
	if n, ok := c.transport.(ErrorNotifier); ok {
		n.SetErrorHandler(c.reportError)
	}

	c.stopped.Store(false)
	go c.loop(ctx)
	return nil
}

// Suspend stops the sync loop after its current in-flight call completes.
// An already-sent request is allowed to finish and its result is still
// merged; that is safe because merges are idempotent and the watermark is
// monotonic.
func (c *Controller) Suspend() {
	if c.stopped.CompareAndSwap(false, true) {
		c.setState(StateSuspended)
	}
}

// Resume restarts syncing from the current watermark. It is a no-op unless
// the controller was actually suspended; no snapshot re-fetch happens and
// previously rendered messages are kept.
func (c *Controller) Resume() {
	c.mu.Lock()
	suspended := c.state == StateSuspended
	c.mu.Unlock()
	if !suspended {
		return
	}
	c.stopped.Store(false)
	c.setState(StateConnected)
	go c.loop(c.ctx)
}

// Send submits a composed message. Blank input is rejected locally with
// ErrEmptyMessage. On failure the error (and therefore the rejected draft,
// via the caller) is surfaced through the error handler; the sync loop is
// unaffected. On success under the poll strategy one eager reconciliation
// pass runs so the sender sees their own message promptly.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	c.clearError()
	sent, err := c.transport.Send(ctx, text)
	if err != nil {
		c.reportError(err)
		return err
	}
	if p, ok := c.transport.(EagerPoller); ok && p.EagerPoll() {
		c.eagerSync(ctx, sent.ID)
	}
	return nil
}

// State returns the current connection state.
func (c *Controller) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the most recent unresolved error, nil once cleared.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Watermark returns the highest merged message id.
func (c *Controller) Watermark() int64 { return c.wm.Load() }

// Rows returns the rendered log, ascending by id.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Rows()
}

// loop is the single logical sync loop. Entering it while it is already
// running is a no-op.
func (c *Controller) loop(ctx context.Context) {
	if !c.looping.CompareAndSwap(false, true) {
		return
	}
	defer c.looping.Store(false)

	for !c.stopped.Load() && ctx.Err() == nil {
		// Every attempt starts with a clean error banner; a still-failing
		// endpoint re-raises it below.
		c.clearError()
		if err := c.syncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.reportError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// syncOnce performs one AwaitNext round-trip and merges its result. The
// watermark advance and view append for a batch happen together, under the
// same lock that serializes requests, so they can never diverge.
func (c *Controller) syncOnce(ctx context.Context) error {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	batch, err := c.transport.AwaitNext(ctx, c.wm.Load())
	if err != nil {
		return err
	}
	c.merge(batch)
	return nil
}

// eagerSync is the post-send reconciliation pass for the poll strategy. It
// shares pollMu with the loop, so at most one request from this cause is
// outstanding; if the loop's own in-flight poll already delivered the sent
// message, the watermark check skips the extra round-trip entirely.
func (c *Controller) eagerSync(ctx context.Context, sentID int64) {
	if sentID > 0 && c.wm.Load() >= sentID {
		return
	}
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	since := c.wm.Load()
	if sentID > 0 && since >= sentID {
		return
	}
	batch, err := c.transport.AwaitNext(ctx, since)
	if err != nil {
		// Not fatal: the main loop will pick the message up on its own.
		slog.Debug("eager post-send poll failed", slog.Any("err", err))
		return
	}
	c.merge(batch)
}

// merge applies one batch. Callers hold pollMu.
func (c *Controller) merge(batch []Message) {
	if len(batch) == 0 {
		return
	}
	batch = filterAfter(batch, 0)
	c.wm.Advance(batch)
	c.mu.Lock()
	c.view.AppendMany(batch)
	c.mu.Unlock()
}

// transportState reflects push-channel connectivity into the controller
// state. Suspension wins: while hidden the controller stops reacting.
func (c *Controller) transportState(s ConnState) {
	if c.stopped.Load() {
		return
	}
	if s == StateConnected {
		c.clearError()
	}
	c.setState(s)
}

func (c *Controller) setState(s ConnState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if changed && fn != nil {
		fn(s)
	}
}

func (c *Controller) reportError(err error) {
	c.mu.Lock()
	c.lastErr = err
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Controller) clearError() {
	c.mu.Lock()
	had := c.lastErr != nil
	c.lastErr = nil
	fn := c.onError
	c.mu.Unlock()
	if had && fn != nil {
		fn(nil)
	}
}
