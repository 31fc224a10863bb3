package keymap

import (
	"nativekeymap/internal/keycode"
)

// BuildSnapshot resolves every table entry under every modifier combination
// the handle supports. Entries without a native identifier are skipped and
// entries that produce no character at all are omitted.
func BuildSnapshot(table *keycode.Table, r *Resolver, h Handle) Snapshot {
	mods := h.Modifiers()
	snap := Snapshot{
		Modifiers: append([]Modifier(nil), mods...),
		Keys:      make(map[string]Entry),
	}

	for _, ke := range table.All() {
		code := h.NativeCode(ke)
		if code == 0 {
			continue
		}

		var e Entry
		for _, m := range mods {
			e.Set(m, r.Resolve(code, m, h))
		}
		if e.empty(mods) {
			continue
		}
		snap.Keys[ke.Code] = e
	}

	return snap
}
