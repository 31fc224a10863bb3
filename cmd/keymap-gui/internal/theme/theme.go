package theme

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the viewer colors.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	// Absent marks slots where a key produces no character.
	Absent color.NRGBA
	Error  color.NRGBA
}

// Config defines the viewer metrics.
type Config struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	SidebarWidth unit.Dp
	CodeColumn   unit.Dp
	SlotColumn   unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontGlyph    unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps the material theme with platform styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// NewTheme picks palette and metrics for the current OS.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}
	if runtime.GOOS == "windows" {
		setupWindowsTheme(t)
	} else {
		setupLinuxTheme(t)
	}
	t.Theme.Palette.Fg = t.Palette.Text
	t.Theme.Palette.Bg = t.Palette.Background
	t.Theme.Palette.ContrastBg = t.Palette.Primary
	return t
}

func setupWindowsTheme(t *Theme) {
	// Fluent dark palette.
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF},
		Surface:    color.NRGBA{R: 0x2C, G: 0x2C, B: 0x2C, A: 0xFF},
		Primary:    color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF},
		Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF},
		Border:     color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF},
		Absent:     color.NRGBA{R: 0x5A, G: 0x5A, B: 0x5A, A: 0xFF},
		Error:      color.NRGBA{R: 0xE8, G: 0x11, B: 0x23, A: 0xFF},
	}
	t.Config = Config{
		CornerRadius: unit.Dp(4),
		Spacing:      unit.Dp(8),
		Padding:      unit.Dp(16),
		SidebarWidth: unit.Dp(260),
		CodeColumn:   unit.Dp(160),
		SlotColumn:   unit.Dp(120),
		FontTitle:    unit.Sp(20),
		FontBody:     unit.Sp(14),
		FontGlyph:    unit.Sp(18),
		FontCaption:  unit.Sp(12),
	}
}

func setupLinuxTheme(t *Theme) {
	// Adwaita dark palette.
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x24, G: 0x24, B: 0x24, A: 0xFF},
		Surface:    color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF},
		Primary:    color.NRGBA{R: 0x35, G: 0x84, B: 0xE4, A: 0xFF},
		Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xDE},
		TextMuted:  color.NRGBA{R: 0x9A, G: 0x99, B: 0x96, A: 0xFF},
		Border:     color.NRGBA{R: 0x45, G: 0x45, B: 0x45, A: 0xFF},
		Absent:     color.NRGBA{R: 0x5E, G: 0x5C, B: 0x64, A: 0xFF},
		Error:      color.NRGBA{R: 0xE0, G: 0x1B, B: 0x24, A: 0xFF},
	}
	t.Config = Config{
		CornerRadius: unit.Dp(8),
		Spacing:      unit.Dp(8),
		Padding:      unit.Dp(18),
		SidebarWidth: unit.Dp(260),
		CodeColumn:   unit.Dp(160),
		SlotColumn:   unit.Dp(110),
		FontTitle:    unit.Sp(20),
		FontBody:     unit.Sp(14),
		FontGlyph:    unit.Sp(18),
		FontCaption:  unit.Sp(12),
	}
}
