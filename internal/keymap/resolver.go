package keymap

import (
	"nativekeymap/internal/keycode"
)

// Handle is the native translation context for one query: the layout that
// was active when the query started, plus whatever scratch state the
// platform needs to translate against it. Handles are obtained fresh for
// every query and must not be kept.
type Handle interface {
	// Modifiers lists the combinations this platform resolves.
	Modifiers() []Modifier
	// NativeCode selects this platform's identifier from a table entry.
	// Zero means the key does not exist on this platform.
	NativeCode(e keycode.Entry) uint32
	// Translate runs the native translation primitive once.
	Translate(code uint32, mod Modifier) Translation
	// ClearDeadKey feeds a neutral key through the same translation state
	// so a pending dead key does not combine with the next translation.
	ClearDeadKey()
}

// Resolver applies the character policy on top of a Handle.
type Resolver struct {
	deadKeys int
}

// Resolve returns the character produced by code under mod.
//
// Control characters and untranslatable keys resolve to NoChar. A dead key
// also resolves to NoChar, and is cleared out of the native translation
// state before returning: the OS keeps it pending and would otherwise fold
// it into whatever is translated next through the same handle.
func (r *Resolver) Resolve(code uint32, mod Modifier, h Handle) Result {
	t := h.Translate(code, mod)
	if t.Kind == TranslationDead {
		h.ClearDeadKey()
		r.deadKeys++
		return NoChar
	}
	return t.Result()
}

// DeadKeys returns how many dead keys were cleared since the last Reset.
func (r *Resolver) DeadKeys() int { return r.deadKeys }

// Reset zeroes the dead key counter.
func (r *Resolver) Reset() { r.deadKeys = 0 }
