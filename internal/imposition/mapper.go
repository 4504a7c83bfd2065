package imposition

import "fmt"

// Map returns the two final page numbers printed on a sheet of a saddle-stitched
// booklet with totalFinalPages pages. sheetIndex is 1-based.
//
// Sheet 1 carries the centre spread (S, S+1) and each following sheet walks one
// spread outward, alternating which side ascends. first+second is always
// totalFinalPages+1.
func Map(sheetIndex, totalFinalPages int) (first, second int, err error) {
	if err := checkTotal(totalFinalPages); err != nil {
		return 0, 0, err
	}
	sheets := totalFinalPages / 2
	if sheetIndex < 1 || sheetIndex > sheets {
		return 0, 0, &OutOfRangeError{What: "sheet index", Value: sheetIndex, Min: 1, Max: sheets}
	}

	j := sheetIndex - 1
	b := j % 2
	first = sheets + (2*b-1)*j + b
	second = totalFinalPages + 1 - first
	return first, second, nil
}

// Table returns the imposition entries for every sheet of the booklet.
func Table(totalFinalPages int) ([]ImpositionEntry, error) {
	if err := checkTotal(totalFinalPages); err != nil {
		return nil, err
	}
	sheets := totalFinalPages / 2
	out := make([]ImpositionEntry, 0, sheets)
	for i := 1; i <= sheets; i++ {
		f, s, err := Map(i, totalFinalPages)
		if err != nil {
			return nil, err
		}
		out = append(out, ImpositionEntry{Sheet: i, First: f, Second: s})
	}
	return out, nil
}

// NormalizePageCount rounds n up to the next multiple of 4. padded reports whether
// rounding happened so the caller can log it.
func NormalizePageCount(n int) (normalized int, padded bool, err error) {
	if n <= 0 {
		return 0, false, &PreconditionError{Field: "total final pages", Value: n, Reason: "must be positive"}
	}
	normalized = (n + 3) / 4 * 4
	return normalized, normalized != n, nil
}

// VerifyTable checks a booklet table against the conjugate-pair and bijection
// invariants and returns the first violation found.
func VerifyTable(totalFinalPages int) error {
	table, err := Table(totalFinalPages)
	if err != nil {
		return err
	}
	seen := make([]bool, totalFinalPages+1)
	for _, e := range table {
		if e.First+e.Second != totalFinalPages+1 {
			return fmt.Errorf("sheet %d: pages %d+%d do not sum to %d", e.Sheet, e.First, e.Second, totalFinalPages+1)
		}
		for _, p := range []int{e.First, e.Second} {
			if p < 1 || p > totalFinalPages {
				return fmt.Errorf("sheet %d: page %d outside 1..%d", e.Sheet, p, totalFinalPages)
			}
			if seen[p] {
				return fmt.Errorf("sheet %d: page %d already assigned", e.Sheet, p)
			}
			seen[p] = true
		}
	}
	for p := 1; p <= totalFinalPages; p++ {
		if !seen[p] {
			return fmt.Errorf("page %d not assigned to any sheet", p)
		}
	}
	return nil
}

// ReferenceBooklet32 is the hand-recorded layout of a 16-sheet, 32-page booklet.
var ReferenceBooklet32 = []ImpositionEntry{
	{1, 16, 17}, {2, 18, 15}, {3, 14, 19}, {4, 20, 13},
	{5, 12, 21}, {6, 22, 11}, {7, 10, 23}, {8, 24, 9},
	{9, 8, 25}, {10, 26, 7}, {11, 6, 27}, {12, 28, 5},
	{13, 4, 29}, {14, 30, 3}, {15, 2, 31}, {16, 32, 1},
}

func checkTotal(total int) error {
	if total <= 0 || total%4 != 0 {
		return &PreconditionError{Field: "total final pages", Value: total, Reason: "must be a positive multiple of 4"}
	}
	return nil
}
