package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromUTF16(t *testing.T) {
	tests := []struct {
		name  string
		count int32
		buf   []uint16
		want  Translation
	}{
		{"dead", -1, []uint16{'^'}, Translation{Kind: TranslationDead}},
		{"none", 0, nil, Translation{Kind: TranslationNone}},
		{"letter", 1, []uint16{'a', 0}, printable("a")},
		{"surrogate pair", 2, []uint16{0xd83d, 0xde00}, printable("😀")},
		{"control", 1, []uint16{0x01}, Translation{Kind: TranslationControl}},
		{"count beyond buffer", 4, []uint16{'x'}, printable("x")},
		{"replacement character", 1, []uint16{0xfffd}, printable("\ufffd")},
		{"lone high surrogate", 1, []uint16{0xd83d}, Translation{Kind: TranslationNone}},
		{"lone low surrogate", 1, []uint16{0xde00}, Translation{Kind: TranslationNone}},
		{"reversed pair", 2, []uint16{0xde00, 0xd83d}, Translation{Kind: TranslationNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromUTF16(tt.count, tt.buf))
		})
	}
}

func TestFromWide(t *testing.T) {
	assert.Equal(t, Translation{Kind: TranslationDead}, fromWide(0xfe52, []rune{'^'}))
	assert.Equal(t, Translation{Kind: TranslationNone}, fromWide('a', nil))
	assert.Equal(t, printable("ß"), fromWide(0xdf, []rune{'ß'}))
	assert.Equal(t, Translation{Kind: TranslationControl}, fromWide(0xff1b, []rune{0x1b}))
	assert.Equal(t, printable("\ufffd"), fromWide(0xfffd, []rune{0xfffd}))
	assert.Equal(t, Translation{Kind: TranslationNone}, fromWide(0, []rune{0xd800}))
}

func TestFromLatin1(t *testing.T) {
	assert.Equal(t, printable("é"), fromLatin1(0xe9, []byte{0xe9}))
	assert.Equal(t, printable("a"), fromLatin1('a', []byte("a")))
	assert.Equal(t, Translation{Kind: TranslationDead}, fromLatin1(0xfe51, []byte("'")))
	assert.Equal(t, Translation{Kind: TranslationNone}, fromLatin1(0xffe1, nil))
	assert.Equal(t, Translation{Kind: TranslationControl}, fromLatin1(0xff0d, []byte{'\r'}))
}

func TestIsDeadKeysym(t *testing.T) {
	assert.True(t, isDeadKeysym(0xfe50))
	assert.True(t, isDeadKeysym(0xfe93))
	assert.False(t, isDeadKeysym(0xfe4f))
	assert.False(t, isDeadKeysym(0xfe94))
	assert.False(t, isDeadKeysym('a'))
}

func TestTranslationResult(t *testing.T) {
	assert.Equal(t, Char("a"), printable("a").Result())
	assert.Equal(t, NoChar, Translation{Kind: TranslationPrintable}.Result())
	assert.Equal(t, NoChar, control("\x01").Result())
	assert.Equal(t, NoChar, dead("^").Result())
	assert.Equal(t, "dead", TranslationDead.String())
}

func TestXkbBaseState(t *testing.T) {
	assert.Equal(t, uint32(0), xkbBaseState(0))
	assert.Equal(t, uint32(1<<13), xkbBaseState(1))
	assert.Equal(t, uint32(3<<13), xkbBaseState(3))
	assert.Equal(t, uint32(0), xkbBaseState(4))
	assert.Equal(t, uint32(0), xkbBaseState(-1))
}

func TestFormatXkbLayoutName(t *testing.T) {
	assert.Equal(t, "us [0]", formatXkbLayoutName("us", "", 0))
	assert.Equal(t, "de,nodeadkeys [1]", formatXkbLayoutName("de", "nodeadkeys", 1))
}

func TestSplitLayouts(t *testing.T) {
	assert.Equal(t, []string{"us", "de", "fr"}, splitLayouts("us,de,fr"))
	assert.Equal(t, []string{"us", "de"}, splitLayouts("us, de,,us"))
	assert.Nil(t, splitLayouts(""))
}

func TestLangIDFromHKL(t *testing.T) {
	assert.Equal(t, uint32(0x0409), langIDFromHKL(0x04090409))
	assert.Equal(t, uint32(0x0407), langIDFromHKL(0xf0a00407))
}
