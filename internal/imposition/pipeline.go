package imposition

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Options configures Plan.
type Options struct {
	Mode    Mode
	Rotate  bool
	Reverse bool // simple mode only

	// TotalFinalPages overrides the booklet page count. Zero means 2 x len(sheets).
	// Non-multiples of 4 are rounded up and reported in Result.Padded.
	TotalFinalPages int

	// Blank is the size of filler pages in booklet mode. Zero means A4.
	Blank Size

	// Workers bounds how many sheets are split concurrently. Values below 1 mean 1.
	Workers int

	Logger *zerolog.Logger
}

// Result is the ordered output of a conversion plan.
type Result struct {
	Placements      []Placement
	TotalFinalPages int
	Padded          bool
	Skipped         []int // sheet indexes with no place in the booklet
	Duplicates      []int // final pages filed more than once
	Blanks          int
}

// Plan turns sheets into placement instructions for the selected mode.
func Plan(sheets []Sheet, opts Options) (*Result, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Blank == (Size{}) {
		opts.Blank = A4
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Mode == ModeBooklet {
		return planBooklet(sheets, opts)
	}
	return planSimple(sheets, opts)
}

func planSimple(sheets []Sheet, opts Options) (*Result, error) {
	halves := make([][]HalfPage, len(sheets))
	err := forEachSheet(sheets, opts.Workers, func(pos int, s Sheet) error {
		first, second, err := Split(s, opts.Rotate)
		if err != nil {
			return err
		}
		halves[pos] = EmitOrder(first, second, opts.Reverse)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Placements: make([]Placement, 0, 2*len(sheets))}
	for _, pair := range halves {
		for _, h := range pair {
			h := h
			res.Placements = append(res.Placements, Placement{Ordinal: len(res.Placements) + 1, Half: &h})
		}
	}
	res.TotalFinalPages = len(res.Placements)
	return res, nil
}

func planBooklet(sheets []Sheet, opts Options) (*Result, error) {
	log := opts.Logger
	requested := opts.TotalFinalPages
	if requested < 0 {
		return nil, &PreconditionError{Field: "total final pages", Value: requested, Reason: "must not be negative"}
	}
	if requested == 0 {
		requested = 2 * len(sheets)
	}
	total, padded, err := NormalizePageCount(requested)
	if err != nil {
		return nil, err
	}
	if padded {
		log.Warn().Int("requested", requested).Int("padded_to", total).Msg("page count padded to a multiple of 4")
	}

	asm, err := NewAssembler(total, opts.Blank)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		skipped    []int
		duplicates []int
	)
	err = forEachSheet(sheets, opts.Workers, func(_ int, s Sheet) error {
		fp, sp, err := Map(s.Index, total)
		if err != nil {
			if IsOutOfRange(err) {
				log.Warn().Int("sheet", s.Index).Int("total_pages", total).Msg("sheet exceeds booklet, skipping")
				mu.Lock()
				skipped = append(skipped, s.Index)
				mu.Unlock()
				return nil
			}
			return err
		}
		first, second, err := Split(s, opts.Rotate)
		if err != nil {
			return err
		}
		for _, f := range []struct {
			page int
			half HalfPage
		}{{fp, first}, {sp, second}} {
			replaced, err := asm.File(f.page, f.half)
			if err != nil {
				return err
			}
			if replaced {
				log.Warn().Int("sheet", s.Index).Int("page", f.page).Msg("duplicate contribution, last write wins")
				mu.Lock()
				duplicates = append(duplicates, f.page)
				mu.Unlock()
			}
		}
		log.Debug().Int("sheet", s.Index).Int("first", fp).Int("second", sp).Msg("sheet filed")
		return nil
	})
	if err != nil {
		return nil, err
	}

	placements, err := asm.Drain()
	if err != nil {
		return nil, err
	}
	sort.Ints(skipped)
	sort.Ints(duplicates)
	res := &Result{
		Placements:      placements,
		TotalFinalPages: total,
		Padded:          padded,
		Skipped:         skipped,
		Duplicates:      duplicates,
	}
	for _, p := range placements {
		if p.IsBlank() {
			res.Blanks++
		}
	}
	if res.Blanks > 0 {
		log.Info().Int("blanks", res.Blanks).Int("total_pages", total).Msg("missing pages filled with blanks")
	}
	return res, nil
}

// forEachSheet runs fn for every sheet on at most workers goroutines and returns
// once all calls finished. The first error wins; remaining sheets are skipped.
func forEachSheet(sheets []Sheet, workers int, fn func(pos int, s Sheet) error) error {
	if workers > len(sheets) {
		workers = len(sheets)
	}
	if workers <= 1 {
		for i, s := range sheets {
			if err := fn(i, s); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	failed := func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return firstErr != nil
	}
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed() {
					continue
				}
				if err := fn(i, sheets[i]); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
			}
		}()
	}
	for i := range sheets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

// IsPrecondition reports whether err was caused by invalid input.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }
