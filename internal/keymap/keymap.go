// Package keymap reports how the active keyboard layout maps physical keys
// to characters.
//
// The package never intercepts or injects key events. Each query asks the
// operating system's translation layer what a key would produce right now
// under no modifiers, Shift, and (on Windows) AltGraph and AltGraph+Shift:
//
//	Linux:   X11 input context (XwcLookupString), XKB group state
//	Windows: ToUnicodeEx against the foreground window's HKL
//
// Exactly one native backend is compiled into a binary; the choice is made
// with build tags, see keyboard_*.go.
package keymap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Modifier is one modifier combination a key is resolved under.
type Modifier uint8

const (
	Unmodified Modifier = iota
	Shift
	AltGraph
	AltGraphShift

	modifierCount
)

var modifierNames = [modifierCount]string{
	Unmodified:    "unmodified",
	Shift:         "withShift",
	AltGraph:      "withAltGraph",
	AltGraphShift: "withAltGraphShift",
}

// String returns the field name used in serialized snapshots.
func (m Modifier) String() string {
	if m >= modifierCount {
		return fmt.Sprintf("Modifier(%d)", m)
	}
	return modifierNames[m]
}

// ParseModifier is the inverse of Modifier.String.
func ParseModifier(s string) (Modifier, bool) {
	for i, name := range modifierNames {
		if name == s {
			return Modifier(i), true
		}
	}
	return 0, false
}

// Result is the character a key produces, or no character at all.
// Dead keys, control characters and untranslatable keys are all
// represented as no character.
type Result struct {
	text  string
	valid bool
}

// NoChar is the absent result.
var NoChar = Result{}

// Char returns a present result.
func Char(s string) Result {
	return Result{text: s, valid: true}
}

// Value returns the character and whether one is present.
func (r Result) Value() (string, bool) { return r.text, r.valid }

// Present reports whether the key produces a character.
func (r Result) Present() bool { return r.valid }

func (r Result) String() string {
	if !r.valid {
		return "<none>"
	}
	return r.text
}

// MarshalJSON encodes absent results as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.text)
}

// UnmarshalJSON decodes null as NoChar.
func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NoChar
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Char(s)
	return nil
}

// Entry holds one result per modifier combination for a single key.
type Entry struct {
	slots [modifierCount]Result
}

// Get returns the result for a modifier combination.
func (e Entry) Get(m Modifier) Result {
	if m >= modifierCount {
		return NoChar
	}
	return e.slots[m]
}

// Set stores the result for a modifier combination.
func (e *Entry) Set(m Modifier, r Result) {
	if m < modifierCount {
		e.slots[m] = r
	}
}

// empty reports whether no slot in mods holds a character.
func (e Entry) empty(mods []Modifier) bool {
	for _, m := range mods {
		if e.Get(m).Present() {
			return false
		}
	}
	return true
}

// Snapshot is the full per-key character mapping of the active layout at
// the time of the query. Keys with no character under any modifier are
// omitted; included keys keep explicit absent slots.
type Snapshot struct {
	// Modifiers lists the combinations resolved on this platform, in
	// serialization order.
	Modifiers []Modifier
	// Keys maps standardized key codes to their results.
	Keys map[string]Entry
}

// Lookup returns the entry for a standardized key code.
func (s Snapshot) Lookup(code string) (Entry, bool) {
	e, ok := s.Keys[code]
	return e, ok
}

// Len returns the number of keys in the snapshot.
func (s Snapshot) Len() int { return len(s.Keys) }

// Codes returns the key codes in lexical order.
func (s Snapshot) Codes() []string {
	codes := make([]string, 0, len(s.Keys))
	for code := range s.Keys {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Equal reports whether two snapshots hold the same mapping.
func (s Snapshot) Equal(other Snapshot) bool {
	if !slices.Equal(s.Modifiers, other.Modifiers) || len(s.Keys) != len(other.Keys) {
		return false
	}
	for code, e := range s.Keys {
		o, ok := other.Keys[code]
		if !ok {
			return false
		}
		for _, m := range s.Modifiers {
			if e.Get(m) != o.Get(m) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the snapshot as
//
//	{"KeyA": {"unmodified": "a", "withShift": "A"}, ...}
//
// emitting only the snapshot's modifier slots, with null for absent ones.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range s.Codes() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteString(":{")
		e := s.Keys[code]
		for j, m := range s.Modifiers {
			if j > 0 {
				buf.WriteByte(',')
			}
			val, err := e.Get(m).MarshalJSON()
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&buf, "%q:", m.String())
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the MarshalJSON form. The modifier set is the union
// of slot names found, in canonical order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]Result
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var present [modifierCount]bool
	keys := make(map[string]Entry, len(raw))
	for code, slots := range raw {
		var e Entry
		for name, r := range slots {
			m, ok := ParseModifier(name)
			if !ok {
				return fmt.Errorf("keymap: %s: unknown modifier %q", code, name)
			}
			present[m] = true
			e.Set(m, r)
		}
		keys[code] = e
	}

	var mods []Modifier
	for m, ok := range present {
		if ok {
			mods = append(mods, Modifier(m))
		}
	}
	s.Modifiers = mods
	s.Keys = keys
	return nil
}

// Digest returns a BLAKE2b-256 hash of the canonical JSON encoding. Two
// snapshots with equal mappings have equal digests.
func (s Snapshot) Digest() [32]byte {
	data, err := s.MarshalJSON()
	if err != nil {
		// MarshalJSON only fails on unencodable strings, which key codes
		// and Go strings never are.
		panic(err)
	}
	return blake2b.Sum256(data)
}
