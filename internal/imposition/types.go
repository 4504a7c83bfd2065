// Package imposition maps oversized scanned sheets onto the half-size pages they carry.
//
// It splits each sheet into two halves, computes where each half belongs in a
// saddle-stitched booklet and assembles the halves into a gapless final sequence.
// The package does no I/O: sheets arrive as opaque content handles with a size and
// leave as placement instructions for a document writer.
package imposition

import (
	"fmt"
	"strings"
)

// Orientation of a sheet, derived from its size.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// Sheet is one scanned input unit. Content is owned by the document collaborator.
type Sheet struct {
	Index   int // 1-based position in the input stream
	Width   float64
	Height  float64
	Content any
}

// Orientation reports Landscape when the sheet is strictly wider than tall.
// Square sheets are Portrait.
func (s Sheet) Orientation() Orientation {
	if s.Width > s.Height {
		return Landscape
	}
	return Portrait
}

// Rect is a crop rectangle in PDF user space (y grows upward), relative to the
// sheet's own lower-left corner.
type Rect struct {
	LLX, LLY float64
	URX, URY float64
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g]-[%g,%g]", r.LLX, r.LLY, r.URX, r.URY)
}

// Role tells which half of a sheet a HalfPage came from.
type Role int

const (
	First  Role = iota // left or top
	Second             // right or bottom
)

func (r Role) String() string {
	if r == Second {
		return "second"
	}
	return "first"
}

// HalfPage is one half of a split sheet.
type HalfPage struct {
	SourceSheet int
	Role        Role
	Crop        Rect
	Rotation    int // 0 or 90, applied after cropping
	Content     any
}

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// A4 is the nominal final page size used for blank filler unless configured otherwise.
var A4 = Size{Width: 595, Height: 842}

// BlankMarker stands in for a final page nobody contributed.
type BlankMarker struct {
	Size Size
}

// Mode selects the conversion flavour.
type Mode int

const (
	ModeSimple Mode = iota
	ModeBooklet
)

func (m Mode) String() string {
	if m == ModeBooklet {
		return "booklet"
	}
	return "simple"
}

// ParseMode accepts "simple" or "booklet" (case-insensitive). Empty means simple.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple", "split":
		return ModeSimple, nil
	case "booklet":
		return ModeBooklet, nil
	}
	return ModeSimple, &PreconditionError{Field: "mode", Value: s, Reason: "must be simple or booklet"}
}

// ImpositionEntry records the two final pages carried by one sheet.
type ImpositionEntry struct {
	Sheet  int `json:"sheet"`
	First  int `json:"first"`
	Second int `json:"second"`
}

// Placement is one instruction for the document writer: either a half page to crop
// and rotate, or a blank page of a given size.
type Placement struct {
	Ordinal int
	Half    *HalfPage
	Blank   *BlankMarker
}

// IsBlank reports whether the placement carries no content.
func (p Placement) IsBlank() bool { return p.Half == nil }
