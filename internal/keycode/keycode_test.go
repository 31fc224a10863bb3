package keycode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := Default()
	require.NotNil(t, table)
	assert.Greater(t, table.Len(), 100)
	assert.Same(t, table, Default(), "table must be decoded once")
}

func TestDefaultTable_Invariants(t *testing.T) {
	table := Default()

	seen := make(map[string]bool)
	var lastUSB uint32
	for i, e := range table.All() {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true

		if e.Evdev != 0 {
			assert.Equal(t, e.Evdev+8, e.XKB, "%s: xkb must be evdev+8", e.Code)
		} else {
			assert.Zero(t, e.XKB, "%s: xkb without evdev", e.Code)
		}

		if i > 0 {
			assert.Greater(t, e.USB, lastUSB, "%s: table not in USB order", e.Code)
		}
		lastUSB = e.USB
	}
}

func TestLookup(t *testing.T) {
	table := Default()

	tests := []struct {
		code  string
		xkb   uint32
		win   uint32
		found bool
	}{
		{"KeyA", 0x26, 0x1e, true},
		{"Digit1", 0x0a, 0x02, true},
		{"Space", 0x41, 0x39, true},
		{"ArrowUp", 0x6f, 0xe048, true},
		{"IntlHash", 0, 0, true},
		{"NoSuchKey", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e, ok := table.Lookup(tt.code)
			require.Equal(t, tt.found, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.xkb, e.XKB)
			assert.Equal(t, tt.win, e.Win)
		})
	}
}

func TestAll_StopsEarly(t *testing.T) {
	n := 0
	for range Default().All() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		table, err := Parse([]byte(`keys:
  - [0x070004, 0x001e, 0x0026, 0x001e, "KeyA"]
  - [0x070005, 0x0030, 0x0038, 0x0030, "KeyB"]
`))
		require.NoError(t, err)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, "KeyB", table.At(1).Code)
		assert.Equal(t, uint32(0x070005), table.At(1).USB)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := Parse([]byte(`keys:
  - [1, 2, 10, 2, "KeyA"]
  - [2, 3, 11, 3, "KeyA"]
`))
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("short row", func(t *testing.T) {
		_, err := Parse([]byte(`keys:
  - [1, 2, 10, "KeyA"]
`))
		assert.Error(t, err)
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := Parse([]byte(`keys:
  - [1, 2, 10, 2, ""]
`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Parse([]byte(`keys: []`))
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	tbl, err := LoadFile("")
	require.NoError(t, err)
	assert.Same(t, Default(), tbl)

	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys:\n  - [0x070004, 0x001e, 0x0026, 0x001e, \"KeyA\"]\n"), 0o600))
	tbl, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
