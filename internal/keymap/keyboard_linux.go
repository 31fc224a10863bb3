//go:build linux && cgo

package keymap

/*
#cgo pkg-config: x11 xkbfile

#include <locale.h>
#include <stdlib.h>
#include <string.h>
#include <wchar.h>
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/XKBlib.h>
#include <X11/keysym.h>
#include <X11/extensions/XKBrules.h>

// Focus windows belong to other clients and may disappear between queries.
// The default handler would exit the process on the resulting BadWindow.
static int kl_ignore_error(Display *dpy, XErrorEvent *ev) {
	(void)dpy;
	(void)ev;
	return 0;
}

static void kl_install_error_handler(void) {
	XSetErrorHandler(kl_ignore_error);
}

static XIM kl_open_im(Display *dpy) {
	setlocale(LC_CTYPE, "");
	XSetLocaleModifiers("");
	return XOpenIM(dpy, NULL, NULL, NULL);
}

// kl_input_style returns PreeditNothing|StatusNothing if the input method
// supports it, 0 otherwise.
static XIMStyle kl_input_style(XIM im) {
	XIMStyles *styles = NULL;
	XIMStyle want = XIMPreeditNothing | XIMStatusNothing;
	XIMStyle found = 0;
	unsigned short i;

	if (XGetIMValues(im, XNQueryInputStyle, &styles, NULL) != NULL || styles == NULL) {
		return 0;
	}
	for (i = 0; i < styles->count_styles; i++) {
		if (styles->supported_styles[i] == want) {
			found = want;
			break;
		}
	}
	XFree(styles);
	return found;
}

static XIC kl_create_ic(XIM im, XIMStyle style, Window w) {
	return XCreateIC(im, XNInputStyle, style, XNClientWindow, w, XNFocusWindow, w, NULL);
}

static Window kl_focus_window(Display *dpy) {
	Window w = None;
	int revert = 0;
	XGetInputFocus(dpy, &w, &revert);
	return w;
}

static int kl_group(Display *dpy) {
	XkbStateRec state;
	if (XkbGetState(dpy, XkbUseCoreKbd, &state) != Success) {
		return -1;
	}
	return state.group;
}

// kl_refresh_mapping drops Xlib's cached keysym table so lookups see the
// current layout.
static void kl_refresh_mapping(Display *dpy) {
	XMappingEvent ev;
	memset(&ev, 0, sizeof ev);
	ev.type = MappingNotify;
	ev.display = dpy;
	ev.request = MappingKeyboard;
	XRefreshKeyboardMapping(&ev);
}

static int kl_layout_names(Display *dpy, char **layout, char **variant) {
	XkbRF_VarDefsRec vd;
	char *rules = NULL;

	memset(&vd, 0, sizeof vd);
	*layout = NULL;
	*variant = NULL;
	if (!XkbRF_GetNamesProp(dpy, &rules, &vd)) {
		return 0;
	}
	*layout = vd.layout;
	*variant = vd.variant;
	free(rules);
	free(vd.model);
	free(vd.options);
	return *layout != NULL;
}

typedef struct {
	int used_ic;
	int count;
	int status;
	unsigned long keysym;
	wchar_t wide[8];
	char bytes[16];
} kl_lookup;

static void kl_translate(Display *dpy, XIC ic, unsigned int keycode, unsigned int state, kl_lookup *out) {
	XKeyEvent ev;
	KeySym ks = NoSymbol;

	memset(out, 0, sizeof *out);
	memset(&ev, 0, sizeof ev);
	ev.type = KeyPress;
	ev.display = dpy;
	ev.keycode = keycode;
	ev.state = state;

	if (ic != NULL) {
		Status st = 0;
		out->used_ic = 1;
		out->count = XwcLookupString(ic, &ev, out->wide, 8, &ks, &st);
		out->status = st;
	} else {
		out->count = XLookupString(&ev, out->bytes, sizeof out->bytes, &ks, NULL);
	}
	out->keysym = ks;
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"nativekeymap/internal/keycode"
	"nativekeymap/internal/localed"
)

// x11Keyboard owns the display connection, input method and input context.
type x11Keyboard struct {
	log *slog.Logger

	display  string
	dpy      *C.Display
	im       C.XIM
	style    C.XIMStyle
	ic       C.XIC
	icWindow C.Window
}

func newPlatformKeyboard(log *slog.Logger) platformKeyboard {
	return &x11Keyboard{log: log}
}

func (k *x11Keyboard) name() string { return "x11" }

func (k *x11Keyboard) open(display string) error {
	var cname *C.char
	if display != "" {
		cname = C.CString(display)
		defer C.free(unsafe.Pointer(cname))
	}

	C.kl_install_error_handler()
	k.display = display
	k.dpy = C.XOpenDisplay(cname)
	if k.dpy == nil {
		return &ConnectionError{Display: display, Err: fmt.Errorf("XOpenDisplay failed")}
	}

	k.im = C.kl_open_im(k.dpy)
	if k.im == nil {
		k.log.Warn("no X input method, using layout-only lookups")
		return nil
	}
	k.style = C.kl_input_style(k.im)
	if k.style == 0 {
		k.log.Warn("input method lacks PreeditNothing|StatusNothing, using layout-only lookups")
		return nil
	}

	k.retarget()
	return nil
}

func (k *x11Keyboard) close() {
	if k.ic != nil {
		C.XDestroyIC(k.ic)
		k.ic = nil
		k.icWindow = 0
	}
	if k.im != nil {
		C.XCloseIM(k.im)
		k.im = nil
	}
	if k.dpy != nil {
		C.XCloseDisplay(k.dpy)
		k.dpy = nil
	}
}

// retarget points the input context at the window that has focus now,
// dropping it when nothing is focused.
func (k *x11Keyboard) retarget() {
	if k.im == nil || k.style == 0 {
		return
	}

	w := C.kl_focus_window(k.dpy)
	if w == C.None || w == C.PointerRoot {
		if k.ic != nil {
			k.log.Debug("no focus window, dropping input context")
		}
		k.destroyIC()
		return
	}
	if k.ic != nil && k.icWindow == w {
		return
	}

	k.destroyIC()
	k.ic = C.kl_create_ic(k.im, k.style, w)
	if k.ic == nil {
		k.log.Debug("XCreateIC failed, using layout-only lookups", "window", uint64(w))
		return
	}
	k.icWindow = w
}

func (k *x11Keyboard) destroyIC() {
	if k.ic != nil {
		C.XDestroyIC(k.ic)
		k.ic = nil
		k.icWindow = 0
	}
}

func (k *x11Keyboard) current() Handle {
	C.kl_refresh_mapping(k.dpy)
	k.retarget()

	return &x11Handle{
		dpy:   k.dpy,
		ic:    k.ic,
		base:  xkbBaseState(int(C.kl_group(k.dpy))),
		space: uint32(C.XKeysymToKeycode(k.dpy, C.XK_space)),
	}
}

func (k *x11Keyboard) rulesNames() (layout, variant string, ok bool) {
	var cl, cv *C.char
	found := C.kl_layout_names(k.dpy, &cl, &cv)
	if cl != nil {
		layout = C.GoString(cl)
		C.free(unsafe.Pointer(cl))
	}
	if cv != nil {
		variant = C.GoString(cv)
		C.free(unsafe.Pointer(cv))
	}
	return layout, variant, found != 0 && layout != ""
}

func (k *x11Keyboard) layoutName() (string, bool) {
	layout, variant, ok := k.rulesNames()
	if !ok {
		return "", false
	}
	group := max(int(C.kl_group(k.dpy)), 0)
	return formatXkbLayoutName(layout, variant, group), true
}

// layoutLanguage matches layoutName: XKB has no separate language.
func (k *x11Keyboard) layoutLanguage() string {
	name, _ := k.layoutName()
	return name
}

func (k *x11Keyboard) installedLanguages() []string {
	if layout, _, ok := k.rulesNames(); ok {
		if layouts := splitLayouts(layout); len(layouts) > 0 {
			return layouts
		}
	}

	settings, err := localed.Read()
	if err != nil {
		k.log.Debug("localed unavailable", "error", err)
		return []string{}
	}
	if layouts := splitLayouts(settings.X11Layout); len(layouts) > 0 {
		return layouts
	}
	return []string{}
}

var x11Modifiers = []Modifier{Unmodified, Shift}

// x11Handle translates through the input context when one is bound to the
// focused window, and through XLookupString otherwise.
type x11Handle struct {
	dpy   *C.Display
	ic    C.XIC
	base  uint32
	space uint32
}

func (h *x11Handle) Modifiers() []Modifier { return x11Modifiers }

func (h *x11Handle) NativeCode(e keycode.Entry) uint32 { return e.XKB }

func (h *x11Handle) Translate(code uint32, mod Modifier) Translation {
	state := h.base
	if mod == Shift {
		state |= C.ShiftMask
	}
	return h.lookup(code, state)
}

func (h *x11Handle) ClearDeadKey() {
	if h.space != 0 {
		h.lookup(h.space, h.base)
	}
}

func (h *x11Handle) lookup(code, state uint32) Translation {
	var out C.kl_lookup
	C.kl_translate(h.dpy, h.ic, C.uint(code), C.uint(state), &out)
	keysym := uint32(out.keysym)
	n := int(out.count)

	if out.used_ic != 0 {
		if out.status == C.XBufferOverflow || n <= 0 {
			return fromWide(keysym, nil)
		}
		n = min(n, len(out.wide))
		chars := make([]rune, n)
		for i := range n {
			chars[i] = rune(out.wide[i])
		}
		return fromWide(keysym, chars)
	}

	if n <= 0 {
		return fromLatin1(keysym, nil)
	}
	n = min(n, len(out.bytes))
	return fromLatin1(keysym, C.GoBytes(unsafe.Pointer(&out.bytes[0]), C.int(n)))
}
