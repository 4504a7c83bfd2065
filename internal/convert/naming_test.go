package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local/sheetsplit/internal/imposition"
)

func TestOutputName(t *testing.T) {
	cases := []struct {
		in   string
		mode imposition.Mode
		want string
	}{
		{"scan.pdf", imposition.ModeSimple, "scan_A4.pdf"},
		{"scan.PDF", imposition.ModeBooklet, "scan_booklet.pdf"},
		{`C:\Users\me\scan.pdf`, imposition.ModeSimple, "scan_A4.pdf"},
		{"../../etc/passwd.pdf", imposition.ModeSimple, "passwd_A4.pdf"},
		{".pdf", imposition.ModeSimple, "output_A4.pdf"},
		{"", imposition.ModeBooklet, "output_booklet.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, OutputName(tc.in, tc.mode))
		})
	}
}

func TestOutputNameComposesUnicode(t *testing.T) {
	// "ガ" as katakana KA + combining dakuten, as macOS uploads it
	decomposed := "\u30ab\u3099イド.pdf"
	assert.Equal(t, "\u30acイド_A4.pdf", OutputName(decomposed, imposition.ModeSimple))
}
