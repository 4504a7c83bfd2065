// Package filetype identifies content by its magic bytes rather than by name.
package filetype

import "github.com/gabriel-vasile/mimetype"

const PDF = "application/pdf"

// Info describes detected content.
type Info struct {
	MIMEType  string
	Extension string
}

// Detect inspects the leading bytes of data.
func Detect(data []byte) Info {
	m := mimetype.Detect(data)
	return Info{MIMEType: m.String(), Extension: m.Extension()}
}

// IsPDF reports whether the content starts like a PDF file.
func (i Info) IsPDF() bool { return i.MIMEType == PDF }
