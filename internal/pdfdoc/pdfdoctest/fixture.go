// Package pdfdoctest builds small uncompressed PDFs for tests.
package pdfdoctest

import (
	"bytes"
	"fmt"
	"strings"
)

// A3 landscape and portrait media boxes in points.
var (
	A3Landscape = [2]float64{1190, 842}
	A3Portrait  = [2]float64{842, 1190}
)

// pad is a comment line in every content stream. pdfcpu looks for the last
// xref section in the final 512 bytes of a file, so even a one-page fixture
// has to be longer than that.
var pad = "% " + strings.Repeat("sheetsplit fixture ", 20) + "\n"

// Sheets returns a PDF with n pages of the given size. Each page draws a
// diagonal line so its content stream is non-empty.
func Sheets(n int, size [2]float64) []byte {
	sizes := make([][2]float64, n)
	for i := range sizes {
		sizes[i] = size
	}
	return Build(sizes...)
}

// Build returns a PDF with one page per size.
func Build(sizes ...[2]float64) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.7\n")

	// 1 catalog, 2 page tree, then a page/content pair per sheet
	kids := new(bytes.Buffer)
	for i := range sizes {
		fmt.Fprintf(kids, "%d 0 R ", 3+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d >>", kids.String(), len(sizes)))
	for i, sz := range sizes {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> /Contents %d 0 R >>",
			sz[0], sz[1], 4+2*i))
		stream := fmt.Sprintf("%% sheet %d\n%s0 0 m %g %g l S\n", i+1, pad, sz[0], sz[1])
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
