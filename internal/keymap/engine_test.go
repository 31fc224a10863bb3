package keymap

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestEngineQueriesBeforeSetup(t *testing.T) {
	e := newEngine(quietOptions(), &fakeKeyboard{handle: usHandle()})

	_, err := e.Keymap()
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, _, err = e.LayoutName()
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = e.LayoutLanguage()
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = e.InstalledLanguages()
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = e.Identity()
	assert.ErrorIs(t, err, ErrNotSetUp)
}

func TestEngineLifecycle(t *testing.T) {
	kb := &fakeKeyboard{
		handle:    usHandle(),
		layout:    "00000409",
		hasLayout: true,
		language:  "en-US",
		installed: []string{"en-US", "de-DE"},
	}
	e := newEngine(quietOptions(), kb)

	require.NoError(t, e.Setup())
	assert.True(t, e.Ready())
	assert.ErrorIs(t, e.Setup(), ErrAlreadySetUp)
	assert.Equal(t, 1, kb.opened)

	snap, err := e.Keymap()
	require.NoError(t, err)
	a, ok := snap.Lookup("KeyA")
	require.True(t, ok)
	assert.Equal(t, Char("a"), a.Get(Unmodified))

	id, err := e.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{Name: "00000409", HasName: true, Language: "en-US", Platform: "fake"}, id)

	langs, err := e.InstalledLanguages()
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US", "de-DE"}, langs)

	e.Teardown()
	assert.False(t, e.Ready())
	e.Teardown()
	assert.Equal(t, 2, kb.closed)

	_, err = e.Keymap()
	assert.ErrorIs(t, err, ErrNotSetUp)
}

func TestEngineSetupAfterTeardown(t *testing.T) {
	kb := &fakeKeyboard{handle: usHandle()}
	e := newEngine(quietOptions(), kb)

	require.NoError(t, e.Setup())
	e.Teardown()
	require.NoError(t, e.Setup())
	assert.Equal(t, 2, kb.opened)
	e.Teardown()
}

func TestEngineFailedSetup(t *testing.T) {
	kb := &fakeKeyboard{handle: usHandle(), openErr: errors.New("no display")}
	e := newEngine(Options{Display: ":9", Logger: quietOptions().Logger}, kb)

	err := e.Setup()
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ":9", connErr.Display)
	assert.Contains(t, err.Error(), "no display")
	assert.False(t, e.Ready())

	// Teardown after a failed setup is harmless.
	e.Teardown()
	_, err = e.Keymap()
	assert.ErrorIs(t, err, ErrNotSetUp)
}

func TestEngineLayoutWithoutName(t *testing.T) {
	e := newEngine(quietOptions(), &fakeKeyboard{handle: usHandle()})
	require.NoError(t, e.Setup())
	defer e.Teardown()

	name, ok, err := e.LayoutName()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestEngineRepeatedKeymapsMatch(t *testing.T) {
	e := newEngine(quietOptions(), &fakeKeyboard{handle: usHandle()})
	require.NoError(t, e.Setup())
	defer e.Teardown()

	first, err := e.Keymap()
	require.NoError(t, err)
	second, err := e.Keymap()
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Err: ErrNotAvailable}
	assert.Contains(t, err.Error(), "default display")
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, "keymap: cannot connect to :1", (&ConnectionError{Display: ":1"}).Error())
}

func TestEngineKeymapWithoutLayout(t *testing.T) {
	kb := &fakeKeyboard{handle: &fakeHandle{
		mods: []Modifier{Unmodified, Shift},
		keys: map[uint32]map[Modifier]Translation{},
	}}
	e := newEngine(quietOptions(), kb)
	require.NoError(t, e.Setup())
	defer e.Teardown()

	snap, err := e.Keymap()
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
	assert.Equal(t, []Modifier{Unmodified, Shift}, snap.Modifiers)

	data, err := snap.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	_, ok, err := e.LayoutName()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineKeymapWithPartialTranslation(t *testing.T) {
	// A layout-only lookup that resolves unmodified keys but nothing
	// under Shift, as when no input context is bound.
	kb := &fakeKeyboard{handle: &fakeHandle{
		mods: []Modifier{Unmodified, Shift},
		keys: map[uint32]map[Modifier]Translation{
			0x1e: {Unmodified: printable("a")},
			0x02: {Unmodified: printable("1")},
			0x01: {Unmodified: control("\x1b")},
		},
	}}
	e := newEngine(quietOptions(), kb)
	require.NoError(t, e.Setup())
	defer e.Teardown()

	snap, err := e.Keymap()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	for _, code := range snap.Codes() {
		entry, _ := snap.Lookup(code)
		assert.False(t, entry.empty(snap.Modifiers), code)
		assert.False(t, entry.Get(Shift).Present(), code)
	}
	_, ok := snap.Lookup("Escape")
	assert.False(t, ok)
}
