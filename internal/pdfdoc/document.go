// Package pdfdoc reads scanned sheets out of a PDF and writes placement
// instructions back as a new PDF. It is the only package that knows about pdfcpu.
package pdfdoc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetsplit/internal/imposition"
)

var (
	// ErrEncrypted is returned when the document needs a (different) password.
	ErrEncrypted = errors.New("pdf is encrypted or the password is wrong")
	// ErrNoPages is returned for documents without pages and for empty writes.
	ErrNoPages = errors.New("pdf has no pages")
	// ErrUnreadable wraps parse and validation failures of the input.
	ErrUnreadable = errors.New("pdf is damaged or not a pdf")
)

// PageRef is the content handle carried by every sheet read from a Document.
type PageRef struct {
	Number  int // 1-based page number in the source document
	OriginX float64
	OriginY float64
	Rotate  int // inherited /Rotate of the source page
}

// Document is a parsed source PDF.
type Document struct {
	ctx    *model.Context
	sheets []imposition.Sheet
}

func newConfig(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// Open reads and validates a PDF and derives one sheet per page from its MediaBox.
func Open(rs io.ReadSeeker, password string) (*Document, error) {
	ctx, err := api.ReadContext(rs, newConfig(password))
	if err != nil {
		if errors.Is(err, pdfcpu.ErrWrongPassword) {
			return nil, ErrEncrypted
		}
		return nil, fmt.Errorf("%w: read: %w", ErrUnreadable, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: validate: %w", ErrUnreadable, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, ErrNoPages
	}

	sheets := make([]imposition.Sheet, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		_, _, inh, err := ctx.PageDict(i, false)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if inh == nil || inh.MediaBox == nil {
			return nil, fmt.Errorf("page %d: missing media box", i)
		}
		box := inh.MediaBox
		sheets = append(sheets, imposition.Sheet{
			Index:  i,
			Width:  box.Width(),
			Height: box.Height(),
			Content: PageRef{
				Number:  i,
				OriginX: box.LL.X,
				OriginY: box.LL.Y,
				Rotate:  inh.Rotate,
			},
		})
	}
	log.Debug().Int("pages", len(sheets)).Msg("pdf sheets read")
	return &Document{ctx: ctx, sheets: sheets}, nil
}

// OpenFile is Open for a path on disk.
func OpenFile(path, password string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Open(f, password)
}

// Sheets returns the sheets in document order.
func (d *Document) Sheets() []imposition.Sheet {
	out := make([]imposition.Sheet, len(d.sheets))
	copy(out, d.sheets)
	return out
}

// PageCount returns the number of pages of a PDF file without building sheets.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}
