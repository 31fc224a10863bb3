//go:build !windows && !(linux && cgo)

package keymap

import (
	"log/slog"

	"nativekeymap/internal/keycode"
)

// stubKeyboard is used where no native backend is compiled in: platforms
// other than Linux and Windows, and Linux builds without cgo, since the X11
// backend links against libX11.
type stubKeyboard struct{}

func newPlatformKeyboard(*slog.Logger) platformKeyboard {
	return stubKeyboard{}
}

func (stubKeyboard) name() string { return "none" }

func (stubKeyboard) open(display string) error {
	return &ConnectionError{Display: display, Err: ErrNotAvailable}
}

func (stubKeyboard) close() {}

func (stubKeyboard) current() Handle { return stubHandle{} }

func (stubKeyboard) layoutName() (string, bool) { return "", false }

func (stubKeyboard) layoutLanguage() string { return "" }

func (stubKeyboard) installedLanguages() []string { return []string{} }

type stubHandle struct{}

func (stubHandle) Modifiers() []Modifier { return []Modifier{Unmodified, Shift} }

func (stubHandle) NativeCode(keycode.Entry) uint32 { return 0 }

func (stubHandle) Translate(uint32, Modifier) Translation {
	return Translation{Kind: TranslationNone}
}

func (stubHandle) ClearDeadKey() {}
