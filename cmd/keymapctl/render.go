package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"nativekeymap/internal/keycode"
	"nativekeymap/internal/keymap"
	"nativekeymap/internal/notify"
	"nativekeymap/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#54A0FF"})
)

const absentMark = "·"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderIdentity(id keymap.Identity) string {
	name := id.Name
	if !id.HasName {
		name = mutedStyle.Render("(unknown)")
	}
	return fmt.Sprintf("%s %s  %s %s  %s %s",
		labelStyle.Render("Layout:"), name,
		labelStyle.Render("Language:"), id.Language,
		labelStyle.Render("Backend:"), id.Platform,
	)
}

// displayChar makes spaces visible and escapes unprintable text.
func displayChar(r keymap.Result) string {
	s, ok := r.Value()
	if !ok {
		return mutedStyle.Render(absentMark)
	}
	switch s {
	case " ":
		return "␠"
	case "\u00a0":
		return "⍽"
	}
	if strings.IndexFunc(s, func(r rune) bool { return !strconv.IsPrint(r) }) < 0 {
		return s
	}
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}

// keymapRows orders rows by the key table, not alphabetically.
func keymapRows(snap keymap.Snapshot, tbl *keycode.Table) [][]string {
	var rows [][]string
	for _, e := range tbl.All() {
		entry, ok := snap.Lookup(e.Code)
		if !ok {
			continue
		}
		row := []string{e.Code}
		for _, m := range snap.Modifiers {
			row = append(row, displayChar(entry.Get(m)))
		}
		rows = append(rows, row)
	}
	return rows
}

func renderKeymap(snap keymap.Snapshot) string {
	headers := []string{"key"}
	for _, m := range snap.Modifiers {
		headers = append(headers, m.String())
	}
	return newTable(headers...).Rows(keymapRows(snap, keycode.Default())...).Render()
}

func renderCodes(tbl *keycode.Table) string {
	t := newTable("code", "usb", "evdev", "xkb", "win")
	for _, e := range tbl.All() {
		t.Row(e.Code, fmt.Sprintf("0x%06x", e.USB), hexOrDash(e.Evdev), hexOrDash(e.XKB), hexOrDash(e.Win))
	}
	return t.Render()
}

func hexOrDash(v uint32) string {
	if v == 0 {
		return mutedStyle.Render("-")
	}
	return fmt.Sprintf("0x%04x", v)
}

func renderHistory(list []store.Summary) string {
	t := newTable("id", "taken", "backend", "layout", "language", "keys", "digest")
	for _, s := range list {
		t.Row(
			fmt.Sprint(s.ID),
			s.TakenAt.Format("2006-01-02 15:04:05"),
			s.Platform,
			s.Layout,
			s.Language,
			fmt.Sprint(s.Keys),
			shortDigest(s.Digest),
		)
	}
	return t.Render()
}

func renderChange(c notify.Change) string {
	var b strings.Builder
	verb := "changed"
	if c.Initial {
		verb = "active"
	}
	fmt.Fprintf(&b, "%s %s  ", mutedStyle.Render(c.At.Format("15:04:05")), labelStyle.Render(verb))
	b.WriteString(renderIdentity(c.Identity))
	fmt.Fprintf(&b, "  %d keys  %s", c.Snapshot.Len(), shortDigest(c.Digest))
	return b.String()
}
