package imposition

import "math"

// Split halves a sheet along the axis implied by its orientation.
// Landscape sheets split at x = W/2 into left (First) and right (Second);
// portrait and square sheets split at y = H/2 into top (First) and bottom (Second).
// With rotate set, both halves carry a 90 degree rotation.
func Split(s Sheet, rotate bool) (HalfPage, HalfPage, error) {
	if !validDim(s.Width) {
		return HalfPage{}, HalfPage{}, &PreconditionError{Field: "sheet width", Value: s.Width, Reason: "must be positive and finite"}
	}
	if !validDim(s.Height) {
		return HalfPage{}, HalfPage{}, &PreconditionError{Field: "sheet height", Value: s.Height, Reason: "must be positive and finite"}
	}

	w, h := s.Width, s.Height
	var a, b Rect
	if s.Orientation() == Landscape {
		mid := w / 2
		a = Rect{LLX: 0, LLY: 0, URX: mid, URY: h}
		b = Rect{LLX: mid, LLY: 0, URX: w, URY: h}
	} else {
		mid := h / 2
		a = Rect{LLX: 0, LLY: mid, URX: w, URY: h}
		b = Rect{LLX: 0, LLY: 0, URX: w, URY: mid}
	}

	rot := 0
	if rotate {
		rot = 90
	}
	first := HalfPage{SourceSheet: s.Index, Role: First, Crop: a, Rotation: rot, Content: s.Content}
	second := HalfPage{SourceSheet: s.Index, Role: Second, Crop: b, Rotation: rot, Content: s.Content}
	return first, second, nil
}

// EmitOrder returns the halves in the order simple mode appends them.
// reverse is for right-to-left layouts and only changes order, never roles.
func EmitOrder(first, second HalfPage, reverse bool) []HalfPage {
	if reverse {
		return []HalfPage{second, first}
	}
	return []HalfPage{first, second}
}

func validDim(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
