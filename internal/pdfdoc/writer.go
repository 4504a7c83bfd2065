package pdfdoc

import (
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/sheetsplit/internal/imposition"
)

// Write materialises placements into a new PDF on w. Every content placement
// becomes a copy of its source page with CropBox and Rotate set; blanks become
// empty pages of the requested size.
func (d *Document) Write(w io.Writer, placements []imposition.Placement) error {
	if len(placements) == 0 || len(d.sheets) == 0 {
		return ErrNoPages
	}

	pageNrs := make([]int, len(placements))
	for i, p := range placements {
		if p.IsBlank() {
			// any page will do, its content is stripped below
			pageNrs[i] = 1
			continue
		}
		ref, ok := p.Half.Content.(PageRef)
		if !ok {
			return fmt.Errorf("placement %d: unexpected content handle %T", p.Ordinal, p.Half.Content)
		}
		if ref.Number < 1 || ref.Number > d.ctx.PageCount {
			return fmt.Errorf("placement %d: source page %d out of range", p.Ordinal, ref.Number)
		}
		pageNrs[i] = ref.Number
	}

	out, err := pdfcpu.ExtractPages(d.ctx, pageNrs, false)
	if err != nil {
		return fmt.Errorf("extract pages: %w", err)
	}
	if err := out.EnsurePageCount(); err != nil {
		return fmt.Errorf("count output pages: %w", err)
	}
	if out.PageCount != len(placements) {
		return fmt.Errorf("extracted %d pages, want %d", out.PageCount, len(placements))
	}

	for i, p := range placements {
		pd, _, _, err := out.PageDict(i+1, false)
		if err != nil {
			return fmt.Errorf("output page %d: %w", i+1, err)
		}
		if pd == nil {
			return fmt.Errorf("output page %d: missing page dict", i+1)
		}
		if p.IsBlank() {
			blankPage(pd, p.Blank.Size)
			continue
		}
		ref := p.Half.Content.(PageRef)
		pd["CropBox"] = cropBox(ref, p.Half.Crop).Array()
		if rot := combineRotation(ref.Rotate, p.Half.Rotation); rot != 0 {
			pd["Rotate"] = types.Integer(rot)
		} else {
			pd.Delete("Rotate")
		}
	}

	if err := api.WriteContext(out, w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// cropBox translates a sheet-relative rect into the source page's user space.
func cropBox(ref PageRef, r imposition.Rect) *types.Rectangle {
	return types.NewRectangle(
		ref.OriginX+r.LLX, ref.OriginY+r.LLY,
		ref.OriginX+r.URX, ref.OriginY+r.URY,
	)
}

// combineRotation adds a clockwise rotation to an inherited /Rotate value and
// normalises the result to 0, 90, 180 or 270.
func combineRotation(inherited, extra int) int {
	r := (inherited + extra) % 360
	if r < 0 {
		r += 360
	}
	return r
}

func blankPage(pd types.Dict, size imposition.Size) {
	box := types.NewRectangle(0, 0, size.Width, size.Height).Array()
	pd.Delete("Contents")
	pd.Delete("Annots")
	pd.Delete("Rotate")
	pd["Resources"] = types.Dict{}
	pd["MediaBox"] = box
	pd["CropBox"] = box
}
