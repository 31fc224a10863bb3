package localed

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	props := map[string]dbus.Variant{
		"Locale":         dbus.MakeVariant([]string{"LANG=de_DE.UTF-8"}),
		"X11Layout":      dbus.MakeVariant("de,us"),
		"X11Variant":     dbus.MakeVariant("nodeadkeys,"),
		"X11Model":       dbus.MakeVariant("pc105"),
		"X11Options":     dbus.MakeVariant("grp:alt_shift_toggle"),
		"VConsoleKeymap": dbus.MakeVariant("de-latin1"),
		"Unknown":        dbus.MakeVariant(uint32(7)),
	}

	var s Settings
	decode(props, &s)

	assert.Equal(t, []string{"LANG=de_DE.UTF-8"}, s.Locale)
	assert.Equal(t, "de,us", s.X11Layout)
	assert.Equal(t, "nodeadkeys,", s.X11Variant)
	assert.Equal(t, "pc105", s.X11Model)
	assert.Equal(t, "grp:alt_shift_toggle", s.X11Options)
	assert.Equal(t, "de-latin1", s.VConsoleKeymap)
	assert.Empty(t, s.VConsoleKeymapToggle)
}

func TestDecodeSkipsMistypedValues(t *testing.T) {
	s := Settings{X11Layout: "us"}
	decode(map[string]dbus.Variant{
		"X11Layout": dbus.MakeVariant(int32(1)),
		"Locale":    dbus.MakeVariant("not-a-list"),
	}, &s)

	assert.Equal(t, "us", s.X11Layout)
	assert.Nil(t, s.Locale)
}

func TestLayouts(t *testing.T) {
	tests := []struct {
		layout string
		want   []string
	}{
		{"", nil},
		{"us", []string{"us"}},
		{"us,de", []string{"us", "de"}},
		{" us , ,fr ", []string{"us", "fr"}},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			assert.Equal(t, tt.want, Settings{X11Layout: tt.layout}.Layouts())
		})
	}
}

func TestIsPropertiesChanged(t *testing.T) {
	name := PropertiesInterface + ".PropertiesChanged"

	assert.True(t, isPropertiesChanged(&dbus.Signal{Path: Path, Name: name, Body: []any{Interface}}))
	assert.False(t, isPropertiesChanged(nil))
	assert.False(t, isPropertiesChanged(&dbus.Signal{Path: Path, Name: name}))
	assert.False(t, isPropertiesChanged(&dbus.Signal{Path: "/other", Name: name, Body: []any{Interface}}))
	assert.False(t, isPropertiesChanged(&dbus.Signal{Path: Path, Name: name, Body: []any{"org.example"}}))
}
