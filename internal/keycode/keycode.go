// Package keycode holds the static physical key table.
//
// Every entry binds one layout-independent key code ("KeyA", "Digit1") to
// the native identifiers of the same physical key on each supported
// platform: the X11/XKB keycode on Linux and the Set 1 scan code on
// Windows. The table is an embedded data asset decoded once per process
// and never mutated afterwards.
package keycode

import (
	_ "embed"
	"fmt"
	"iter"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed keycodes.yaml
var keycodesYAML []byte

// Entry describes one physical key.
type Entry struct {
	// USB is the HID usage (page << 16 | id).
	USB uint32
	// Evdev is the Linux input event code.
	Evdev uint32
	// XKB is the X11 keycode (evdev + 8).
	XKB uint32
	// Win is the Windows scan code, with 0xe0 in the high byte for
	// extended keys.
	Win uint32
	// Code is the standardized key code.
	Code string
}

// UnmarshalYAML decodes a flow row of the form [usb, evdev, xkb, win, code].
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 5 {
		return fmt.Errorf("line %d: want [usb, evdev, xkb, win, code]", node.Line)
	}
	ids := []*uint32{&e.USB, &e.Evdev, &e.XKB, &e.Win}
	for i, dst := range ids {
		if err := node.Content[i].Decode(dst); err != nil {
			return fmt.Errorf("line %d column %d: %w", node.Line, i+1, err)
		}
	}
	if err := node.Content[4].Decode(&e.Code); err != nil {
		return fmt.Errorf("line %d: code: %w", node.Line, err)
	}
	if e.Code == "" {
		return fmt.Errorf("line %d: empty code", node.Line)
	}
	return nil
}

// Table is the ordered, read-only key table.
type Table struct {
	entries []Entry
	index   map[string]int
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// At returns the i-th entry in table order.
func (t *Table) At(i int) Entry { return t.entries[i] }

// All iterates entries in table order.
func (t *Table) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range t.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Lookup finds the entry for a standardized key code.
func (t *Table) Lookup(code string) (Entry, bool) {
	i, ok := t.index[code]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

var (
	defaultTable *Table
	loadOnce     sync.Once
)

// Default returns the process-wide table decoded from the embedded asset.
// It panics if the asset is malformed, which can only happen when the
// binary was built from a broken table.
func Default() *Table {
	loadOnce.Do(func() {
		t, err := Parse(keycodesYAML)
		if err != nil {
			panic(fmt.Sprintf("keycode: embedded table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Parse decodes a key table document.
func Parse(data []byte) (*Table, error) {
	var doc struct {
		Keys []Entry `yaml:"keys"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, fmt.Errorf("decode table: no keys")
	}

	t := &Table{
		entries: doc.Keys,
		index:   make(map[string]int, len(doc.Keys)),
	}
	for i, e := range doc.Keys {
		if _, dup := t.index[e.Code]; dup {
			return nil, fmt.Errorf("duplicate code %q", e.Code)
		}
		t.index[e.Code] = i
	}
	return t, nil
}

// LoadFile reads a key table from a YAML file. An empty path returns the
// built-in table.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
