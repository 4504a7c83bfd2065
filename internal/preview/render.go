// Package preview rasterises pages of a converted PDF for the web preview.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ErrPageRange is returned for page numbers outside the document.
var ErrPageRange = errors.New("page out of range")

// Options controls rasterisation.
type Options struct {
	DPI     int
	Quality int
	Gray    bool
}

// Defaults are tuned for thumbnails of A4 pages.
var Defaults = Options{DPI: 72, Quality: 80}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = Defaults.DPI
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = Defaults.Quality
	}
	return o
}

// RenderJPEG renders 1-based page of an in-memory PDF as JPEG.
func RenderJPEG(pdf []byte, page int, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, page, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(page-1, float64(opts.DPI))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	var out image.Image = img
	if opts.Gray {
		gray := image.NewGray(img.Bounds())
		draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
		out = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", page).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("dpi", opts.DPI).
		Bool("gray", opts.Gray).
		Int("jpeg_size", buf.Len()).
		Msg("rendered preview")
	return buf.Bytes(), nil
}
