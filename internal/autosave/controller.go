// Package autosave persists edits in two tiers: a synchronous local snapshot of
// the session in progress, then a fire-and-forget save of the full state.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/clock"
	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/lifecycle"
	"github.com/BaptisteLac/Zeus-sub000/internal/state"
	"github.com/BaptisteLac/Zeus-sub000/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultDebounceDelay  = 400 * time.Millisecond
	DefaultSnapshotMaxAge = 24 * time.Hour
)

var ErrClosed = errors.New("autosave controller closed")

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=autosave_test

type DurableStore interface {
	Save(ctx context.Context, st *state.AppState) error
}

type Params struct {
	// FastStore is the iron-session namespace.
	FastStore faststore.Store
	Durable   DurableStore
	// optional
	Clock          clock.Clock
	Metrics        *metrics.Manager
	DebounceDelay  time.Duration
	SnapshotMaxAge time.Duration
}

// Controller is safe for concurrent use. Its mutex stands for the single UI
// event loop: every method runs to completion before the next one starts.
type Controller struct {
	mu sync.Mutex

	fast    faststore.Store
	durable DurableStore
	clock   clock.Clock
	metrics *metrics.Manager

	debounceDelay  time.Duration
	snapshotMaxAge time.Duration

	// the single pending-debounce slot
	pending    *state.AppState
	timer      clock.Timer
	generation uint64

	pendingSession *state.ActiveSessionSnapshot
	closed         bool
	inFlight       sync.WaitGroup
}

// NewController reads the crash-recovery snapshot once; see PendingSession.
func NewController(params Params) *Controller {
	c := &Controller{
		fast:           params.FastStore,
		durable:        params.Durable,
		clock:          params.Clock,
		metrics:        params.Metrics,
		debounceDelay:  params.DebounceDelay,
		snapshotMaxAge: params.SnapshotMaxAge,
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.debounceDelay <= 0 {
		c.debounceDelay = DefaultDebounceDelay
	}
	if c.snapshotMaxAge <= 0 {
		c.snapshotMaxAge = DefaultSnapshotMaxAge
	}

	c.pendingSession = c.recoverSnapshot()
	return c
}

func (c *Controller) recoverSnapshot() *state.ActiveSessionSnapshot {
	raw, found, err := c.fast.GetString(faststore.SessionKey)
	if err != nil {
		log.Errorf("autosave, read session snapshot: %s", err)
		return nil
	}
	if !found {
		return nil
	}

	snap, err := state.DecodeSnapshot([]byte(raw))
	if err != nil {
		log.Warnf("autosave, dropping corrupted session snapshot: %s", err)
		c.countSnapshot("corrupt")
		if err := c.fast.Delete(faststore.SessionKey); err != nil {
			log.Errorf("autosave, delete corrupted session snapshot: %s", err)
		}
		return nil
	}

	if !snap.IsFresh(c.clock.Now(), c.snapshotMaxAge) {
		log.Debugf("autosave, ignoring stale session snapshot saved at %s", snap.SavedAt)
		c.countSnapshot("stale")
		return nil
	}

	log.Infof("autosave, found session %s in progress, saved at %s", snap.Session, snap.SavedAt)
	c.countSnapshot("pending")
	return snap
}

// PendingSession returns the session found at startup, or nil. It is not re-read later.
func (c *Controller) PendingSession() *state.ActiveSessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingSession.Clone()
}

// DismissPending resolves the crash-recovery prompt: the stored snapshot is deleted
// and PendingSession returns nil from now on.
func (c *Controller) DismissPending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fast.Delete(faststore.SessionKey); err != nil {
		log.Errorf("autosave, delete session snapshot: %s", err)
	}
	c.pendingSession = nil
}

// SaveImmediate writes the session snapshot now and dispatches the durable save.
// It supersedes any pending debounced value.
func (c *Controller) SaveImmediate(st *state.AppState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		log.Warnf("autosave, save after close ignored: %s", ErrClosed)
		return
	}
	c.cancelPendingLocked()
	c.persistLocked(st.Clone())
}

// SaveDebounced records st as the pending value and restarts the countdown.
// A later call replaces the value, nothing is merged.
func (c *Controller) SaveDebounced(st *state.AppState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		log.Warnf("autosave, debounced save after close ignored: %s", ErrClosed)
		return
	}
	c.cancelPendingLocked()

	c.pending = st.Clone()
	gen := c.generation
	c.timer = c.clock.AfterFunc(c.debounceDelay, func() {
		c.fire(gen)
	})
}

// Flush saves the pending value right away. It is a no-op when nothing is pending.
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// HasPending reports whether a debounced value waits for its countdown.
func (c *Controller) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// WatchLifecycle flushes whenever the host leaves the foreground. It returns
// when ctx is done or events is closed.
func (c *Controller) WatchLifecycle(ctx context.Context, events <-chan lifecycle.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Leaving() {
				log.Debugf("autosave, host is %s, flushing", ev)
				c.Flush()
			}
		}
	}
}

// Close flushes, then waits for dispatched durable saves until ctx is done.
// Saves requested after Close are ignored.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.flushLocked()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// superseded or flushed
	if gen != c.generation || c.pending == nil {
		return
	}
	st := c.pending
	c.pending = nil
	c.timer = nil
	c.generation++
	c.persistLocked(st)
}

func (c *Controller) flushLocked() {
	if c.pending == nil {
		return
	}
	st := c.pending
	c.cancelPendingLocked()
	c.persistLocked(st)
}

// cancelPendingLocked stops the timer and bumps the generation, so a timer
// callback already waiting on the mutex finds itself stale.
func (c *Controller) cancelPendingLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.generation++
}

func (c *Controller) persistLocked(st *state.AppState) {
	c.writeSnapshotLocked(st)
	c.dispatchDurable(st)
}

// writeSnapshotLocked stores the session subset of st. Nothing is written when
// no session is in progress.
func (c *Controller) writeSnapshotLocked(st *state.AppState) {
	snap := state.SnapshotOf(st, c.clock.Now())
	if snap == nil {
		return
	}
	data, err := state.EncodeSnapshot(snap)
	if err != nil {
		log.Errorf("autosave, encode session snapshot: %s", err)
		c.countSave("fast", err)
		return
	}
	err = c.fast.Set(faststore.SessionKey, string(data))
	if err != nil {
		log.Errorf("autosave, write session snapshot: %s", err)
	}
	c.countSave("fast", err)
}

// dispatchDurable runs the durable save on its own goroutine. It is never awaited
// by the caller and saves are not serialized; the remote timestamp check settles
// the order. Errors are logged, the local snapshot already holds the edit.
func (c *Controller) dispatchDurable(st *state.AppState) {
	if c.durable == nil {
		return
	}

	c.inFlight.Add(1)
	if c.metrics != nil {
		c.metrics.GaugeInFlightDurable.Inc()
	}
	go func() {
		defer c.inFlight.Done()
		start := time.Now()
		err := c.durable.Save(context.Background(), st)
		if err != nil {
			log.Warnf("autosave, durable save failed: %s", err)
		}
		c.countSave("durable", err)
		if c.metrics != nil {
			c.metrics.GaugeInFlightDurable.Dec()
			c.metrics.HistDurableSaveDuration.Observe(time.Since(start).Seconds())
		}
	}()
}

func (c *Controller) countSave(store string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.CounterSaves.WithLabelValues(store, result).Inc()
}

func (c *Controller) countSnapshot(outcome string) {
	if c.metrics != nil {
		c.metrics.CounterSnapshotsRecovered.WithLabelValues(outcome).Inc()
	}
}
