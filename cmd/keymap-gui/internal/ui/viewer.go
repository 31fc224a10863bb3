package ui

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"nativekeymap/cmd/keymap-gui/internal/theme"
	"nativekeymap/internal/keycode"
	"nativekeymap/internal/keymap"
)

// State is what the viewer shows. It is replaced wholesale on every
// layout change.
type State struct {
	Identity  keymap.Identity
	Installed []string
	Snapshot  keymap.Snapshot
	Err       error
}

// Row is one key line of the keymap list.
type Row struct {
	Code  string
	Slots []keymap.Result
}

// Rows orders snapshot entries by the key table.
func Rows(snap keymap.Snapshot, tbl *keycode.Table) []Row {
	var rows []Row
	for _, e := range tbl.All() {
		entry, ok := snap.Lookup(e.Code)
		if !ok {
			continue
		}
		r := Row{Code: e.Code}
		for _, m := range snap.Modifiers {
			r.Slots = append(r.Slots, entry.Get(m))
		}
		rows = append(rows, r)
	}
	return rows
}

// Viewer shows the active layout and its keymap.
type Viewer struct {
	theme *theme.Theme
	table *keycode.Table

	mu    sync.Mutex
	state State
	rows  []Row

	refresh widget.Clickable
	list    widget.List

	// OnRefresh is called when the refresh button is clicked.
	OnRefresh func()
}

// NewViewer creates a viewer listing keys in table order.
func NewViewer(t *theme.Theme, tbl *keycode.Table) *Viewer {
	return &Viewer{
		theme: t,
		table: tbl,
		list: widget.List{
			List: layout.List{Axis: layout.Vertical},
		},
	}
}

// Update replaces the displayed state. It may be called from any
// goroutine; the window must be invalidated afterwards.
func (v *Viewer) Update(s State) {
	rows := Rows(s.Snapshot, v.table)
	v.mu.Lock()
	v.state = s
	if s.Err == nil {
		v.rows = rows
	}
	v.mu.Unlock()
}

func (v *Viewer) snapshot() (State, []Row) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.rows
}

// Layout renders the viewer.
func (v *Viewer) Layout(gtx layout.Context) layout.Dimensions {
	if v.refresh.Clicked(gtx) && v.OnRefresh != nil {
		v.OnRefresh()
	}

	state, rows := v.snapshot()
	paint.Fill(gtx.Ops, v.theme.Palette.Background)

	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			w := gtx.Dp(v.theme.Config.SidebarWidth)
			gtx.Constraints.Min.X, gtx.Constraints.Max.X = w, w
			return v.layoutSidebar(gtx, state)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			size := image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)
			paint.FillShape(gtx.Ops, v.theme.Palette.Border, clip.Rect{Max: size}.Op())
			return layout.Dimensions{Size: size}
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return v.layoutKeymap(gtx, state, rows)
		}),
	)
}

func (v *Viewer) layoutSidebar(gtx layout.Context, s State) layout.Dimensions {
	th := v.theme
	caption := func(text string) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			l := material.Caption(th.Theme, text)
			l.Color = th.Palette.TextMuted
			l.TextSize = th.Config.FontCaption
			return l.Layout(gtx)
		}
	}
	body := func(text string) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			l := material.Body1(th.Theme, text)
			l.Color = th.Palette.Text
			l.TextSize = th.Config.FontBody
			return l.Layout(gtx)
		}
	}

	name := s.Identity.Name
	if !s.Identity.HasName {
		name = "(unknown)"
	}
	installed := strings.Join(s.Installed, ", ")
	if installed == "" {
		installed = "(none reported)"
	}
	gap := layout.Spacer{Height: th.Config.Spacing}.Layout

	return layout.UniformInset(th.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		children := []layout.FlexChild{
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				title := material.H6(th.Theme, "KEYMAP")
				title.Color = th.Palette.Primary
				title.TextSize = th.Config.FontTitle
				return title.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(24)}.Layout),
			layout.Rigid(caption("Layout")),
			layout.Rigid(body(name)),
			layout.Rigid(gap),
			layout.Rigid(caption("Language")),
			layout.Rigid(body(s.Identity.Language)),
			layout.Rigid(gap),
			layout.Rigid(caption("Installed")),
			layout.Rigid(body(installed)),
			layout.Rigid(gap),
			layout.Rigid(caption("Backend")),
			layout.Rigid(body(s.Identity.Platform)),
			layout.Rigid(gap),
			layout.Rigid(caption("Keys")),
			layout.Rigid(body(fmt.Sprint(s.Snapshot.Len()))),
		}
		if s.Err != nil {
			children = append(children,
				layout.Rigid(gap),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					l := material.Body2(th.Theme, s.Err.Error())
					l.Color = th.Palette.Error
					return l.Layout(gtx)
				}),
			)
		}
		children = append(children,
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Dimensions{Size: gtx.Constraints.Min}
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min.X = gtx.Constraints.Max.X
				btn := material.Button(th.Theme, &v.refresh, "Refresh")
				btn.Background = th.Palette.Primary
				btn.CornerRadius = th.Config.CornerRadius
				return btn.Layout(gtx)
			}),
		)
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
	})
}

func (v *Viewer) layoutKeymap(gtx layout.Context, s State, rows []Row) layout.Dimensions {
	th := v.theme
	return layout.UniformInset(th.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				headers := []string{"Key"}
				for _, m := range s.Snapshot.Modifiers {
					headers = append(headers, m.String())
				}
				return v.layoutRow(gtx, headers, nil, true)
			}),
			layout.Rigid(layout.Spacer{Height: th.Config.Spacing}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				size := gtx.Constraints.Max
				rr := clip.UniformRRect(image.Rect(0, 0, size.X, size.Y), gtx.Dp(th.Config.CornerRadius))
				paint.FillShape(gtx.Ops, th.Palette.Surface, rr.Op(gtx.Ops))

				if len(rows) == 0 {
					return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						l := material.Body1(th.Theme, "No keys produce characters")
						l.Color = th.Palette.TextMuted
						return l.Layout(gtx)
					})
				}
				return material.List(th.Theme, &v.list).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
					r := rows[i]
					cells := make([]string, 0, len(r.Slots)+1)
					cells = append(cells, r.Code)
					for _, slot := range r.Slots {
						cells = append(cells, Glyph(slot))
					}
					return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						return v.layoutRow(gtx, cells, r.Slots, false)
					})
				})
			}),
		)
	})
}

// layoutRow lays out a key code cell followed by one cell per slot.
func (v *Viewer) layoutRow(gtx layout.Context, cells []string, slots []keymap.Result, header bool) layout.Dimensions {
	th := v.theme
	children := make([]layout.FlexChild, 0, len(cells))
	for i, text := range cells {
		width := th.Config.SlotColumn
		if i == 0 {
			width = th.Config.CodeColumn
		}
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			w := gtx.Dp(width)
			gtx.Constraints.Min.X, gtx.Constraints.Max.X = w, w

			l := material.Body1(th.Theme, text)
			switch {
			case header:
				l = material.Caption(th.Theme, text)
				l.Color = th.Palette.TextMuted
			case i == 0:
				l.Color = th.Palette.TextMuted
				l.TextSize = th.Config.FontBody
			case !slots[i-1].Present():
				l.Color = th.Palette.Absent
				l.TextSize = th.Config.FontGlyph
			default:
				l.Color = th.Palette.Text
				l.TextSize = th.Config.FontGlyph
			}
			return l.Layout(gtx)
		}))
	}
	return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx, children...)
}

// Glyph is the cell text for a slot.
func Glyph(r keymap.Result) string {
	s, ok := r.Value()
	switch {
	case !ok:
		return "·"
	case s == " ":
		return "␠"
	case s == "\u00a0":
		return "⍽"
	}
	return s
}
