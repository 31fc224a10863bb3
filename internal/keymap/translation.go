package keymap

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TranslationKind classifies the raw outcome of one native translation.
type TranslationKind uint8

const (
	// TranslationNone means the layout maps nothing to the key.
	TranslationNone TranslationKind = iota
	// TranslationPrintable is a character that can be shown to a user.
	TranslationPrintable
	// TranslationControl is a non-printable character such as ^A.
	TranslationControl
	// TranslationDead is a dead key waiting for the next key press.
	TranslationDead
)

func (k TranslationKind) String() string {
	switch k {
	case TranslationNone:
		return "none"
	case TranslationPrintable:
		return "printable"
	case TranslationControl:
		return "control"
	case TranslationDead:
		return "dead"
	default:
		return fmt.Sprintf("TranslationKind(%d)", k)
	}
}

// Translation is the classified result of a native translation call.
type Translation struct {
	Kind TranslationKind
	Text string
}

// Result converts a translation to the caller-visible result. Only
// printable text survives.
func (t Translation) Result() Result {
	if t.Kind != TranslationPrintable || t.Text == "" {
		return NoChar
	}
	return Char(t.Text)
}

// classifyText sorts produced text into printable, control or none.
// The first character decides, matching how the native layers report a
// single key press. Callers reject malformed native units before
// converting, so a U+FFFD here is a character the layout really produces.
func classifyText(s string) Translation {
	if s == "" {
		return Translation{Kind: TranslationNone}
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsControl(r) {
		return Translation{Kind: TranslationControl}
	}
	return Translation{Kind: TranslationPrintable, Text: s}
}

// validUTF16 reports whether every surrogate in units is paired.
func validUTF16(units []uint16) bool {
	for i := 0; i < len(units); i++ {
		switch u := rune(units[i]); {
		case u < 0xd800 || u > 0xdfff:
		case u <= 0xdbff && i+1 < len(units) && units[i+1] >= 0xdc00 && units[i+1] <= 0xdfff:
			i++
		default:
			return false
		}
	}
	return true
}

// fromUTF16 classifies the output of ToUnicodeEx. A negative count is a
// dead key, zero is no translation, and a positive count is the number of
// UTF-16 code units written to buf.
func fromUTF16(count int32, buf []uint16) Translation {
	switch {
	case count < 0:
		return Translation{Kind: TranslationDead}
	case count == 0:
		return Translation{Kind: TranslationNone}
	}
	n := min(int(count), len(buf))
	if !validUTF16(buf[:n]) {
		return Translation{Kind: TranslationNone}
	}
	return classifyText(string(utf16.Decode(buf[:n])))
}

// XKB dead keysyms occupy dead_grave (0xfe50) through dead_greek (0xfe8c)
// plus the lowline/aboveverticalline family up to 0xfe93.
const (
	xkDeadFirst = 0xfe50
	xkDeadLast  = 0xfe93
)

func isDeadKeysym(keysym uint32) bool {
	return keysym >= xkDeadFirst && keysym <= xkDeadLast
}

// fromWide classifies XwcLookupString output. wchar_t is UTF-32 on the
// platforms that run X11.
func fromWide(keysym uint32, chars []rune) Translation {
	if isDeadKeysym(keysym) {
		return Translation{Kind: TranslationDead}
	}
	if len(chars) == 0 {
		return Translation{Kind: TranslationNone}
	}
	for _, c := range chars {
		if !utf8.ValidRune(c) {
			return Translation{Kind: TranslationNone}
		}
	}
	return classifyText(string(chars))
}

// fromLatin1 classifies XLookupString output, which is ISO 8859-1 for the
// keysyms it is able to convert.
func fromLatin1(keysym uint32, b []byte) Translation {
	if isDeadKeysym(keysym) {
		return Translation{Kind: TranslationDead}
	}
	if len(b) == 0 {
		return Translation{Kind: TranslationNone}
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return Translation{Kind: TranslationNone}
	}
	return classifyText(string(s))
}

// xkbBaseState folds the active XKB group into core event state bits
// 13-14, as XkbBuildCoreState does.
func xkbBaseState(group int) uint32 {
	if group < 0 {
		return 0
	}
	return uint32(group&0x3) << 13
}

// formatXkbLayoutName renders "layout[,variant] [group]".
func formatXkbLayoutName(layout, variant string, group int) string {
	if variant != "" {
		return fmt.Sprintf("%s,%s [%d]", layout, variant, group)
	}
	return fmt.Sprintf("%s [%d]", layout, group)
}

// splitLayouts turns an XKB layout list such as "us,de,fr" into its
// distinct members, preserving order.
func splitLayouts(list string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range strings.Split(list, ",") {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// langIDFromHKL extracts the language identifier in the low word of a
// Windows keyboard layout handle.
func langIDFromHKL(hkl uintptr) uint32 {
	return uint32(hkl & 0xffff)
}
