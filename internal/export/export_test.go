package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nativekeymap/internal/keymap"
)

func testSnapshot(t *testing.T) keymap.Snapshot {
	t.Helper()
	var snap keymap.Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{
		"KeyA": {"unmodified": "a", "withShift": "A"},
		"Quote": {"unmodified": null, "withShift": "\""}
	}`), &snap))
	return snap
}

func testDocument(t *testing.T) *Document {
	id := keymap.Identity{Name: "us [0]", HasName: true, Language: "us [0]", Platform: "x11"}
	return New(id, []string{"us", "de"}, testSnapshot(t), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewDocument(t *testing.T) {
	d := testDocument(t)
	assert.Equal(t, DocumentVersion, d.Version)
	require.NotNil(t, d.Layout)
	assert.Equal(t, "us [0]", *d.Layout)
	assert.Equal(t, []string{"unmodified", "withShift"}, d.Modifiers)
	assert.Len(t, d.Digest, 64)
}

func TestNewDocumentWithoutLayoutName(t *testing.T) {
	d := New(keymap.Identity{Platform: "win32", Language: "en-US"}, nil, testSnapshot(t), time.Now())
	assert.Nil(t, d.Layout)
	assert.NotNil(t, d.Installed)

	data, err := d.Marshal(false)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"layout":null`)
	assert.Contains(t, string(data), `"installed":[]`)
	require.NoError(t, Validate(data))
}

func TestRoundTrip(t *testing.T) {
	d := testDocument(t)
	data, err := d.Marshal(true)
	require.NoError(t, err)
	require.NoError(t, Validate(data))

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, d.Digest, got.Digest)
	assert.True(t, d.Keymap.Equal(got.Keymap))
	assert.Equal(t, d.TakenAt, got.TakenAt)
	assert.Equal(t, d.Installed, got.Installed)
}

func TestEmptyKeymapRoundTrip(t *testing.T) {
	snap := keymap.Snapshot{Modifiers: []keymap.Modifier{keymap.Unmodified, keymap.Shift}, Keys: map[string]keymap.Entry{}}
	d := New(keymap.Identity{Platform: "x11"}, nil, snap, time.Now())
	data, err := d.Marshal(false)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Modifiers, got.Keymap.Modifiers)
}

func TestValidateRejects(t *testing.T) {
	base := func(t *testing.T) map[string]any {
		data, err := testDocument(t).Marshal(false)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"control character", func(m map[string]any) {
			m["keymap"].(map[string]any)["KeyA"] = map[string]any{"unmodified": "\u0001", "withShift": "A"}
		}},
		{"all slots absent", func(m map[string]any) {
			m["keymap"].(map[string]any)["KeyA"] = map[string]any{"unmodified": nil, "withShift": nil}
		}},
		{"empty entry", func(m map[string]any) {
			m["keymap"].(map[string]any)["KeyA"] = map[string]any{}
		}},
		{"unknown modifier", func(m map[string]any) {
			m["keymap"].(map[string]any)["KeyA"] = map[string]any{"withControl": "a"}
		}},
		{"bad digest", func(m map[string]any) { m["digest"] = "xyz" }},
		{"wrong version", func(m map[string]any) { m["version"] = 2 }},
		{"missing platform", func(m map[string]any) { delete(m, "platform") }},
		{"extra field", func(m map[string]any) { m["extra"] = true }},
		{"bad timestamp", func(m map[string]any) { m["taken_at"] = "yesterday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base(t)
			tt.mutate(m)
			data, err := json.Marshal(m)
			require.NoError(t, err)
			assert.Error(t, Validate(data))
		})
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	assert.ErrorContains(t, Validate([]byte("{")), "invalid JSON")
}

func TestDecodeDigestMismatch(t *testing.T) {
	d := testDocument(t)
	d.Digest = strings.Repeat("0", 64)
	data, err := d.Marshal(false)
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDecodeModifierMismatch(t *testing.T) {
	d := testDocument(t)
	d.Modifiers = []string{"unmodified", "withAltGraph"}
	data, err := d.Marshal(false)
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrModifierMismatch)
}

func TestDecodeModifierOrder(t *testing.T) {
	d := testDocument(t)
	d.Modifiers = []string{"withShift", "unmodified"}
	data, err := d.Marshal(false)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []keymap.Modifier{keymap.Unmodified, keymap.Shift}, got.Keymap.Modifiers)
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us.json")
	d := testDocument(t)

	require.NoError(t, WriteFile(path, d, true, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.Digest, got.Digest)
}

func TestSchemaIsValidJSON(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal(Schema(), &v))
	assert.Equal(t, schemaURL, v["$id"])
}
