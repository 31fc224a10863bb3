//go:build windows

package keymap

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"

	"nativekeymap/internal/keycode"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetKeyboardLayout        = user32.NewProc("GetKeyboardLayout")
	procActivateKeyboardLayout   = user32.NewProc("ActivateKeyboardLayout")
	procGetKeyboardLayoutNameW   = user32.NewProc("GetKeyboardLayoutNameW")
	procGetKeyboardLayoutList    = user32.NewProc("GetKeyboardLayoutList")
	procMapVirtualKeyExW         = user32.NewProc("MapVirtualKeyExW")
	procToUnicodeEx              = user32.NewProc("ToUnicodeEx")
	procLCIDToLocaleName         = kernel32.NewProc("LCIDToLocaleName")
)

const (
	mapvkVscToVk = 1

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	keyDown   = 0x80

	spaceScanCode = 0x39

	klNameLength        = 9
	localeNameMaxLength = 85
)

type win32Keyboard struct {
	log *slog.Logger
}

func newPlatformKeyboard(log *slog.Logger) platformKeyboard {
	return &win32Keyboard{log: log}
}

func (k *win32Keyboard) name() string { return "win32" }

// open only checks that the keyboard entry points resolve. Win32 keeps no
// per-client connection to acquire.
func (k *win32Keyboard) open(string) error {
	for _, p := range []*windows.LazyProc{procToUnicodeEx, procMapVirtualKeyExW, procGetKeyboardLayout} {
		if err := p.Find(); err != nil {
			return &ConnectionError{Display: "desktop", Err: fmt.Errorf("resolve %s: %w", p.Name, err)}
		}
	}
	return nil
}

func (k *win32Keyboard) close() {}

// foregroundHKL returns the layout of the thread owning the foreground
// window, or of the calling thread when nothing is in the foreground.
func foregroundHKL() uintptr {
	var tid uintptr
	if hwnd, _, _ := procGetForegroundWindow.Call(); hwnd != 0 {
		tid, _, _ = procGetWindowThreadProcessId.Call(hwnd, 0)
	}
	hkl, _, _ := procGetKeyboardLayout.Call(tid)
	return hkl
}

func (k *win32Keyboard) current() Handle {
	return &win32Handle{hkl: foregroundHKL()}
}

func (k *win32Keyboard) layoutName() (string, bool) {
	// GetKeyboardLayoutName reports the calling thread's layout.
	procActivateKeyboardLayout.Call(foregroundHKL(), 0)

	var buf [klNameLength]uint16
	if r, _, _ := procGetKeyboardLayoutNameW.Call(uintptr(unsafe.Pointer(&buf[0]))); r == 0 {
		return "", false
	}
	return windows.UTF16ToString(buf[:]), true
}

func (k *win32Keyboard) layoutLanguage() string {
	return localeName(langIDFromHKL(foregroundHKL()))
}

func (k *win32Keyboard) installedLanguages() []string {
	n, _, _ := procGetKeyboardLayoutList.Call(0, 0)
	if n == 0 {
		return []string{}
	}
	layouts := make([]uintptr, n)
	n, _, _ = procGetKeyboardLayoutList.Call(n, uintptr(unsafe.Pointer(&layouts[0])))

	langs := make([]string, 0, n)
	for _, hkl := range layouts[:n] {
		langs = append(langs, localeName(langIDFromHKL(hkl)))
	}
	return langs
}

// localeName maps a language identifier to a tag such as "en-US".
// MAKELCID(lang, SORT_DEFAULT) is the language id itself.
func localeName(lcid uint32) string {
	var buf [localeNameMaxLength]uint16
	r, _, _ := procLCIDToLocaleName.Call(uintptr(lcid), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0)
	if r == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:])
}

var win32Modifiers = []Modifier{Unmodified, Shift, AltGraph, AltGraphShift}

// win32Handle translates scan codes against one HKL. The key state array
// and output buffer are reused across translations of a query.
type win32Handle struct {
	hkl   uintptr
	state [256]byte
	buf   [5]uint16
}

func (h *win32Handle) Modifiers() []Modifier { return win32Modifiers }

func (h *win32Handle) NativeCode(e keycode.Entry) uint32 { return e.Win }

func (h *win32Handle) Translate(code uint32, mod Modifier) Translation {
	vk := h.virtualKey(code)
	if vk == 0 {
		return Translation{Kind: TranslationNone}
	}

	clear(h.state[:])
	if mod == Shift || mod == AltGraphShift {
		h.state[vkShift] = keyDown
	}
	if mod == AltGraph || mod == AltGraphShift {
		h.state[vkMenu] = keyDown
		h.state[vkControl] = keyDown
	}

	return fromUTF16(h.toUnicode(vk, code), h.buf[:])
}

// ClearDeadKey translates the space key with no modifiers held, which
// consumes the pending dead key from the kernel-mode buffer. Dead keys are
// not consumed while both Shift and AltGraph are down, so the state is
// cleared first.
func (h *win32Handle) ClearDeadKey() {
	h.state[vkShift] = 0
	h.state[vkMenu] = 0
	h.state[vkControl] = 0
	h.toUnicode(h.virtualKey(spaceScanCode), spaceScanCode)
}

func (h *win32Handle) virtualKey(scanCode uint32) uint32 {
	vk, _, _ := procMapVirtualKeyExW.Call(uintptr(scanCode), mapvkVscToVk, h.hkl)
	return uint32(vk)
}

func (h *win32Handle) toUnicode(vk, scanCode uint32) int32 {
	r, _, _ := procToUnicodeEx.Call(
		uintptr(vk),
		uintptr(scanCode),
		uintptr(unsafe.Pointer(&h.state[0])),
		uintptr(unsafe.Pointer(&h.buf[0])),
		uintptr(len(h.buf)),
		0,
		h.hkl,
	)
	return int32(r)
}
