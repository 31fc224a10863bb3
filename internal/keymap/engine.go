package keymap

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"nativekeymap/internal/keycode"
	"nativekeymap/internal/logging"
)

// Engine errors.
var (
	ErrNotSetUp     = errors.New("keymap: engine not set up")
	ErrAlreadySetUp = errors.New("keymap: engine already set up")
	ErrNotAvailable = errors.New("keymap: native keyboard access not available on this platform")
)

// ConnectionError is returned by Setup when the display or keyboard
// subsystem cannot be reached. The engine must not be used afterwards.
type ConnectionError struct {
	Display string
	Err     error
}

func (e *ConnectionError) Error() string {
	display := e.Display
	if display == "" {
		display = "default display"
	}
	if e.Err == nil {
		return fmt.Sprintf("keymap: cannot connect to %s", display)
	}
	return fmt.Sprintf("keymap: cannot connect to %s: %v", display, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// platformKeyboard is implemented once per build target.
type platformKeyboard interface {
	// open acquires native resources. On failure it releases anything it
	// acquired before returning.
	open(display string) error
	// close releases native resources. It is idempotent.
	close()
	// current resolves the active layout into a Handle. It never fails;
	// missing focus or input context only narrows what can be produced.
	current() Handle
	layoutName() (string, bool)
	layoutLanguage() string
	installedLanguages() []string
	name() string
}

// Options configures an Engine.
type Options struct {
	// Display selects the X11 display. Empty means $DISPLAY. Ignored on
	// Windows.
	Display string
	// Logger defaults to the "keymap" component of the default logger.
	Logger *slog.Logger
	// Table defaults to keycode.Default().
	Table *keycode.Table
}

// Identity describes the active layout.
type Identity struct {
	// Name is the layout name, empty when HasName is false.
	Name    string
	HasName bool
	// Language is the locale tag of the layout.
	Language string
	// Platform is the native backend in use ("x11", "win32", ...).
	Platform string
}

// Engine answers keymap and layout queries against live OS state.
//
// Setup must succeed before any query. An Engine is not safe for
// concurrent use: queries must not overlap each other or Teardown. Callers
// receiving layout change signals on other goroutines marshal them onto the
// goroutine that owns the engine (see package notify).
type Engine struct {
	opts  Options
	log   *slog.Logger
	table *keycode.Table
	kb    platformKeyboard

	ready      bool
	cleanup    runtime.Cleanup
	hasCleanup bool
}

// New returns an engine backed by the native keyboard of this platform.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("keymap").Logger
	}
	return newEngine(opts, newPlatformKeyboard(opts.Logger))
}

func newEngine(opts Options, kb platformKeyboard) *Engine {
	log := opts.Logger
	if log == nil {
		log = logging.Default().WithComponent("keymap").Logger
	}
	table := opts.Table
	if table == nil {
		table = keycode.Default()
	}
	return &Engine{
		opts:  opts,
		log:   log,
		table: table,
		kb:    kb,
	}
}

// Setup acquires the native resources. It returns a *ConnectionError when
// the display cannot be reached.
func (e *Engine) Setup() error {
	if e.ready {
		return ErrAlreadySetUp
	}

	if err := e.kb.open(e.opts.Display); err != nil {
		e.log.Error("keymap setup failed", "backend", e.kb.name(), "error", err)
		return err
	}
	e.ready = true

	// Release native resources if the engine is dropped without Teardown.
	e.cleanup = runtime.AddCleanup(e, func(kb platformKeyboard) { kb.close() }, e.kb)
	e.hasCleanup = true

	e.log.Info("keymap engine ready", "backend", e.kb.name(), "keys", e.table.Len())
	return nil
}

// Teardown releases native resources. It may be called any number of
// times, including after a failed Setup.
func (e *Engine) Teardown() {
	if e.hasCleanup {
		e.cleanup.Stop()
		e.hasCleanup = false
	}
	e.kb.close()
	if e.ready {
		e.ready = false
		e.log.Info("keymap engine torn down", "backend", e.kb.name())
	}
}

// Ready reports whether Setup succeeded and Teardown has not run.
func (e *Engine) Ready() bool { return e.ready }

// Platform returns the native backend name.
func (e *Engine) Platform() string { return e.kb.name() }

// Table returns the key table the engine iterates.
func (e *Engine) Table() *keycode.Table { return e.table }

// Keymap builds a snapshot of the active layout.
func (e *Engine) Keymap() (Snapshot, error) {
	if !e.ready {
		return Snapshot{}, ErrNotSetUp
	}

	// Win32 keeps the active layout and the dead key buffer per thread, so
	// a whole query including dead key clearing stays on one thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var r Resolver
	snap := BuildSnapshot(e.table, &r, e.kb.current())
	e.log.Debug("keymap built", "keys", snap.Len(), "dead_keys_cleared", r.DeadKeys())
	return snap, nil
}

// LayoutName returns the name of the active layout, if the platform
// reports one.
func (e *Engine) LayoutName() (string, bool, error) {
	if !e.ready {
		return "", false, ErrNotSetUp
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	name, ok := e.kb.layoutName()
	return name, ok, nil
}

// LayoutLanguage returns the locale tag of the active layout. On X11 there
// is no separate notion of language and this equals the layout name.
func (e *Engine) LayoutLanguage() (string, error) {
	if !e.ready {
		return "", ErrNotSetUp
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	return e.kb.layoutLanguage(), nil
}

// InstalledLanguages returns the locale tags of all installed layouts. The
// list is empty where the platform offers no enumeration.
func (e *Engine) InstalledLanguages() ([]string, error) {
	if !e.ready {
		return nil, ErrNotSetUp
	}
	return e.kb.installedLanguages(), nil
}

// Identity bundles name and language of the active layout.
func (e *Engine) Identity() (Identity, error) {
	name, ok, err := e.LayoutName()
	if err != nil {
		return Identity{}, err
	}
	lang, err := e.LayoutLanguage()
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Name:     name,
		HasName:  ok,
		Language: lang,
		Platform: e.kb.name(),
	}, nil
}
