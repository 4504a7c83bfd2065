package imposition

import "sync"

// Assembler collects half pages keyed by final page number and drains them in
// reading order. File may be called from several goroutines; Drain must run after
// every File call has returned.
type Assembler struct {
	mu      sync.Mutex
	total   int
	blank   Size
	buf     map[int]HalfPage
	drained bool
}

// NewAssembler returns an empty buffer for totalFinalPages pages. blank is the size
// given to pages nobody files.
func NewAssembler(totalFinalPages int, blank Size) (*Assembler, error) {
	if totalFinalPages <= 0 {
		return nil, &PreconditionError{Field: "total final pages", Value: totalFinalPages, Reason: "must be positive"}
	}
	if !validDim(blank.Width) || !validDim(blank.Height) {
		return nil, &PreconditionError{Field: "blank size", Value: blank, Reason: "must be positive and finite"}
	}
	return &Assembler{
		total: totalFinalPages,
		blank: blank,
		buf:   make(map[int]HalfPage, totalFinalPages),
	}, nil
}

// File stores h under page. A later call for the same page wins; replaced reports
// that an earlier half was overwritten.
func (a *Assembler) File(page int, h HalfPage) (replaced bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drained {
		return false, ErrDrained
	}
	if page < 1 || page > a.total {
		return false, &OutOfRangeError{What: "final page", Value: page, Min: 1, Max: a.total}
	}
	_, replaced = a.buf[page]
	a.buf[page] = h
	return replaced, nil
}

// Len returns the number of distinct pages filed so far.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Total returns the fixed final page count.
func (a *Assembler) Total() int { return a.total }

// Drain emits exactly Total placements in ascending page order, substituting a
// blank for every page without a filed half. It can be called once.
func (a *Assembler) Drain() ([]Placement, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.drained {
		return nil, ErrDrained
	}
	a.drained = true

	out := make([]Placement, 0, a.total)
	for p := 1; p <= a.total; p++ {
		if h, ok := a.buf[p]; ok {
			h := h
			out = append(out, Placement{Ordinal: p, Half: &h})
			continue
		}
		out = append(out, Placement{Ordinal: p, Blank: &BlankMarker{Size: a.blank}})
	}
	return out, nil
}
