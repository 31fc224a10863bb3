// Package notify detects keyboard layout changes by polling a keymap
// engine and by reacting to external triggers such as systemd-localed
// property changes.
//
// Engine calls are never made from the notifier's own goroutine. They go
// through a Dispatcher, which runs them on the goroutine (and OS thread)
// that owns the engine.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.design/x/mainthread"

	"nativekeymap/internal/keymap"
	"nativekeymap/internal/logging"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = time.Second

// Source is the engine surface the notifier polls. *keymap.Engine
// implements it.
type Source interface {
	Identity() (keymap.Identity, error)
	Keymap() (keymap.Snapshot, error)
}

// ErrClosed is returned by a Dispatcher that no longer runs calls.
var ErrClosed = errors.New("notify: dispatcher closed")

// Dispatcher runs fn on the engine's owner thread and waits for it. It
// returns ErrClosed without running fn once the owner has stopped.
type Dispatcher interface {
	Call(fn func()) error
}

// Direct runs calls on the calling goroutine. It is correct only when the
// notifier is driven from the engine's owner.
type Direct struct{}

// Call implements Dispatcher.
func (Direct) Call(fn func()) error {
	fn()
	return nil
}

// MainThread dispatches onto the process main thread. The program must be
// running under mainthread.Init.
type MainThread struct{}

// Call implements Dispatcher.
func (MainThread) Call(fn func()) error {
	mainthread.Call(fn)
	return nil
}

// Change describes the layout state after a detected change.
type Change struct {
	Identity keymap.Identity
	Snapshot keymap.Snapshot
	Digest   [32]byte
	At       time.Time
	// Initial is set on the first observation after Run starts.
	Initial bool
}

// Options configures a Notifier.
type Options struct {
	Dispatcher Dispatcher
	Interval   time.Duration
	Logger     *slog.Logger
}

// Notifier polls a Source and reports changes to registered callbacks.
type Notifier struct {
	src  Source
	disp Dispatcher
	log  *slog.Logger

	mu        sync.Mutex
	interval  time.Duration
	callbacks []func(Change)
	last      *Change

	trigger  chan struct{}
	retarget chan time.Duration
	now      func() time.Time
}

// New creates a notifier for src.
func New(src Source, opts Options) *Notifier {
	if opts.Dispatcher == nil {
		opts.Dispatcher = Direct{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("notify").Logger
	}
	return &Notifier{
		src:      src,
		disp:     opts.Dispatcher,
		log:      opts.Logger,
		interval: opts.Interval,
		trigger:  make(chan struct{}, 1),
		retarget: make(chan time.Duration, 1),
		now:      time.Now,
	}
}

// OnChange registers a callback. Callbacks run on the Run goroutine, in
// registration order.
func (n *Notifier) OnChange(fn func(Change)) {
	n.mu.Lock()
	n.callbacks = append(n.callbacks, fn)
	n.mu.Unlock()
}

// Interval returns the current polling interval.
func (n *Notifier) Interval() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.interval
}

// SetInterval changes the polling interval of a running notifier.
func (n *Notifier) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	n.mu.Lock()
	n.interval = d
	n.mu.Unlock()

	// Keep only the newest pending value.
	select {
	case <-n.retarget:
	default:
	}
	select {
	case n.retarget <- d:
	default:
	}
}

// Trigger requests an immediate check. Triggers arriving while one is
// pending are coalesced.
func (n *Notifier) Trigger() {
	select {
	case n.trigger <- struct{}{}:
	default:
	}
}

// Last returns the most recent observation.
func (n *Notifier) Last() (Change, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return Change{}, false
	}
	return *n.last, true
}

// Check polls the source once and reports whether the layout changed since
// the previous check. The first check always reports a change.
func (n *Notifier) Check() (Change, bool, error) {
	var (
		id   keymap.Identity
		snap keymap.Snapshot
		err  error
	)
	callErr := n.disp.Call(func() {
		id, err = n.src.Identity()
		if err != nil {
			return
		}
		snap, err = n.src.Keymap()
	})
	if callErr != nil {
		return Change{}, false, callErr
	}
	if err != nil {
		return Change{}, false, err
	}

	c := Change{Identity: id, Snapshot: snap, Digest: snap.Digest(), At: n.now()}

	n.mu.Lock()
	prev := n.last
	changed := prev == nil || prev.Digest != c.Digest || prev.Identity != c.Identity
	c.Initial = prev == nil
	if changed {
		n.last = &c
	}
	callbacks := append([]func(Change){}, n.callbacks...)
	n.mu.Unlock()

	if !changed {
		return c, false, nil
	}
	n.log.Info("layout changed",
		"layout", id.Name,
		"language", id.Language,
		"keys", snap.Len(),
		"initial", c.Initial,
	)
	for _, fn := range callbacks {
		fn(c)
	}
	return c, true, nil
}

// Run polls until ctx is cancelled. Errors from the source are logged and
// polling continues, except keymap.ErrNotSetUp and ErrClosed, which end Run.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.Interval())
	defer ticker.Stop()

	check := func() error {
		if _, _, err := n.Check(); err != nil {
			if errors.Is(err, keymap.ErrNotSetUp) || errors.Is(err, ErrClosed) {
				return err
			}
			n.log.Warn("layout check failed", "error", err)
		}
		return nil
	}

	if err := check(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-n.retarget:
			ticker.Reset(d)
			n.log.Debug("poll interval changed", "interval", d)
		case <-n.trigger:
			if err := check(); err != nil {
				return err
			}
		case <-ticker.C:
			if err := check(); err != nil {
				return err
			}
		}
	}
}
