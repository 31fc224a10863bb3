// Package export writes keymap snapshots as self-describing JSON documents
// and validates documents against the embedded snapshot schema.
package export

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"nativekeymap/internal/keymap"
)

// DocumentVersion is the export format version.
const DocumentVersion = 1

const schemaURL = "https://nativekeymap.local/schema/snapshot-v1.schema.json"

//go:embed snapshot.schema.json
var schemaJSON []byte

// ErrDigestMismatch is returned by Decode when the digest does not match
// the keymap.
var ErrDigestMismatch = errors.New("export: digest does not match keymap")

// ErrModifierMismatch is returned by Decode when the keymap slots are not
// the modifiers the document declares.
var ErrModifierMismatch = errors.New("export: keymap slots do not match modifiers")

// Document is an exported snapshot.
type Document struct {
	Version   int             `json:"version"`
	Platform  string          `json:"platform"`
	Layout    *string         `json:"layout"`
	Language  string          `json:"language"`
	Installed []string        `json:"installed"`
	Modifiers []string        `json:"modifiers"`
	Keymap    keymap.Snapshot `json:"keymap"`
	Digest    string          `json:"digest"`
	TakenAt   time.Time       `json:"taken_at"`
}

// New builds a document for snap taken under id.
func New(id keymap.Identity, installed []string, snap keymap.Snapshot, takenAt time.Time) *Document {
	d := &Document{
		Version:   DocumentVersion,
		Platform:  id.Platform,
		Language:  id.Language,
		Installed: installed,
		Keymap:    snap,
		TakenAt:   takenAt.UTC(),
	}
	if id.HasName {
		name := id.Name
		d.Layout = &name
	}
	if d.Installed == nil {
		d.Installed = []string{}
	}
	for _, m := range snap.Modifiers {
		d.Modifiers = append(d.Modifiers, m.String())
	}
	sum := snap.Digest()
	d.Digest = hex.EncodeToString(sum[:])
	return d
}

// Marshal encodes the document, indented if requested.
func (d *Document) Marshal(indent bool) ([]byte, error) {
	if !indent {
		return json.Marshal(d)
	}
	return json.MarshalIndent(d, "", "  ")
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// Schema returns the embedded JSON Schema.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

// Validate checks data against the snapshot schema.
func Validate(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("export: compile schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("export: invalid JSON: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("export: schema validation failed: %w", err)
	}
	return nil
}

// Decode validates data and decodes it, checking that the digest matches
// the keymap and that the modifier list agrees with the entries.
func Decode(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("export: decode: %w", err)
	}

	// Snapshot decoding derives modifiers from slot names, which an empty
	// keymap does not have.
	mods := make([]keymap.Modifier, 0, len(d.Modifiers))
	for _, name := range d.Modifiers {
		m, _ := keymap.ParseModifier(name)
		mods = append(mods, m)
	}
	slices.Sort(mods)
	if d.Keymap.Len() > 0 && !slices.Equal(d.Keymap.Modifiers, mods) {
		return nil, fmt.Errorf("%w: keymap slots %v, modifiers %v", ErrModifierMismatch, d.Keymap.Modifiers, d.Modifiers)
	}
	d.Keymap.Modifiers = mods

	sum := d.Keymap.Digest()
	if hex.EncodeToString(sum[:]) != d.Digest {
		return nil, ErrDigestMismatch
	}
	return &d, nil
}

// WriteFile writes the document to path, validating it first if asked.
// The file is replaced atomically.
func WriteFile(path string, d *Document, indent, validate bool) error {
	data, err := d.Marshal(indent)
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	if validate {
		if err := Validate(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.json")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}

// ReadFile reads and decodes a document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read: %w", err)
	}
	return Decode(data)
}
