package convert

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/local/sheetsplit/internal/imposition"
)

// OutputName derives the download name for a converted upload:
// "<stem>_A4.pdf" for simple splits and "<stem>_booklet.pdf" for booklets.
func OutputName(uploadName string, mode imposition.Mode) string {
	// uploads from Windows browsers may carry a full path
	name := uploadName[strings.LastIndexAny(uploadName, `/\`)+1:]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.TrimSpace(norm.NFC.String(stem))
	if stem == "" || stem == "." || stem == ".." {
		stem = "output"
	}
	if mode == imposition.ModeBooklet {
		return stem + "_booklet.pdf"
	}
	return stem + "_A4.pdf"
}
