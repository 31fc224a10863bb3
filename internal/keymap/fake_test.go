package keymap

import (
	"nativekeymap/internal/keycode"
)

// fakeHandle translates Windows scan codes from a fixed table. Like the
// native layers it keeps a pending dead key and prefixes it to the next
// printable translation unless ClearDeadKey runs first.
type fakeHandle struct {
	mods    []Modifier
	keys    map[uint32]map[Modifier]Translation
	pending string
	cleared int
	calls   int
}

func (h *fakeHandle) Modifiers() []Modifier { return h.mods }

func (h *fakeHandle) NativeCode(e keycode.Entry) uint32 { return e.Win }

func (h *fakeHandle) Translate(code uint32, mod Modifier) Translation {
	h.calls++
	t, ok := h.keys[code][mod]
	if !ok {
		return Translation{Kind: TranslationNone}
	}
	switch t.Kind {
	case TranslationDead:
		h.pending = t.Text
		return Translation{Kind: TranslationDead}
	case TranslationPrintable:
		if h.pending != "" {
			t.Text = h.pending + t.Text
			h.pending = ""
		}
	}
	return t
}

func (h *fakeHandle) ClearDeadKey() {
	h.pending = ""
	h.cleared++
}

func printable(s string) Translation { return Translation{Kind: TranslationPrintable, Text: s} }
func control(s string) Translation   { return Translation{Kind: TranslationControl, Text: s} }
func dead(s string) Translation      { return Translation{Kind: TranslationDead, Text: s} }

// usHandle resembles a US layout with one dead key on BracketLeft.
func usHandle() *fakeHandle {
	return &fakeHandle{
		mods: []Modifier{Unmodified, Shift},
		keys: map[uint32]map[Modifier]Translation{
			0x1e: {Unmodified: printable("a"), Shift: printable("A")},
			0x12: {Unmodified: printable("e"), Shift: printable("E")},
			0x10: {Unmodified: printable("q"), Shift: printable("Q")},
			0x02: {Unmodified: printable("1"), Shift: printable("!")},
			0x39: {Unmodified: printable(" "), Shift: printable(" ")},
			0x01: {Unmodified: control("\x1b"), Shift: control("\x1b")},
			0x0e: {Unmodified: control("\b"), Shift: control("\b")},
			0x1a: {Unmodified: dead("^"), Shift: printable("{")},
			0x28: {Shift: printable("\"")},
		},
	}
}

// fakeKeyboard is a platformKeyboard around a fakeHandle.
type fakeKeyboard struct {
	handle    *fakeHandle
	openErr   error
	opened    int
	closed    int
	layout    string
	hasLayout bool
	language  string
	installed []string
}

func (k *fakeKeyboard) name() string { return "fake" }

func (k *fakeKeyboard) open(display string) error {
	if k.openErr != nil {
		return &ConnectionError{Display: display, Err: k.openErr}
	}
	k.opened++
	return nil
}

func (k *fakeKeyboard) close() { k.closed++ }

func (k *fakeKeyboard) current() Handle {
	k.handle.pending = ""
	return k.handle
}

func (k *fakeKeyboard) layoutName() (string, bool) { return k.layout, k.hasLayout }

func (k *fakeKeyboard) layoutLanguage() string { return k.language }

func (k *fakeKeyboard) installedLanguages() []string { return k.installed }
