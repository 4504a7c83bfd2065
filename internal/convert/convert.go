// Package convert runs one end-to-end conversion: read the scanned PDF, plan
// the half-page placements and write the result. The CLI, the synchronous
// HTTP endpoint and the job worker all go through Convert.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/metrics"
	"github.com/local/sheetsplit/internal/pdfdoc"
)

// ErrTooManySheets is returned when the input exceeds Options.MaxSheets.
var ErrTooManySheets = errors.New("too many sheets")

type Options struct {
	Mode       imposition.Mode
	Rotate     bool
	Reverse    bool
	TotalPages int // booklet only, 0 means two pages per sheet
	Blank      imposition.Size
	Workers    int
	MaxSheets  int // 0 means unlimited
	Password   string

	// Logger overrides the global logger, e.g. a job-scoped child.
	Logger *zerolog.Logger
}

type Report struct {
	Mode            string        `json:"mode"`
	Sheets          int           `json:"sheets"`
	OutputPages     int           `json:"output_pages"`
	TotalFinalPages int           `json:"total_final_pages,omitempty"`
	Padded          bool          `json:"padded,omitempty"`
	Blanks          int           `json:"blanks,omitempty"`
	Skipped         []int         `json:"skipped,omitempty"`
	Duplicates      []int         `json:"duplicates,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

// Convert reads a PDF from in, splits its sheets according to opts and writes
// the resulting PDF to out. Cancellation is checked between stages.
func Convert(ctx context.Context, in io.ReadSeeker, out io.Writer, opts Options) (*Report, error) {
	start := time.Now()
	lg := log.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	mode := opts.Mode.String()

	rep, err := run(ctx, in, out, opts, lg)
	dur := time.Since(start)
	if err != nil {
		result := "failed"
		if imposition.IsPrecondition(err) || errors.Is(err, ErrTooManySheets) {
			result = "rejected"
		}
		metrics.ObserveConversion(mode, result, dur)
		lg.Error().Err(err).Str("mode", mode).Dur("duration", dur).Msg("conversion failed")
		return nil, err
	}
	rep.Duration = dur

	metrics.ObserveConversion(mode, "success", dur)
	metrics.AddSheets(mode, rep.Sheets)
	metrics.AddBlanks(rep.Blanks)
	metrics.AddDuplicates(len(rep.Duplicates))
	metrics.AddSkipped(len(rep.Skipped))

	lg.Info().
		Str("mode", mode).
		Int("sheets", rep.Sheets).
		Int("output_pages", rep.OutputPages).
		Int("blanks", rep.Blanks).
		Ints("skipped", rep.Skipped).
		Ints("duplicates", rep.Duplicates).
		Dur("duration", dur).
		Msg("conversion finished")
	return rep, nil
}

func run(ctx context.Context, in io.ReadSeeker, out io.Writer, opts Options, lg zerolog.Logger) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := pdfdoc.Open(in, opts.Password)
	if err != nil {
		return nil, err
	}
	sheets := doc.Sheets()
	if opts.MaxSheets > 0 && len(sheets) > opts.MaxSheets {
		return nil, fmt.Errorf("%w: %d sheets, limit %d", ErrTooManySheets, len(sheets), opts.MaxSheets)
	}
	lg.Debug().Int("sheets", len(sheets)).Str("mode", opts.Mode.String()).Msg("pdf opened")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := imposition.Plan(sheets, imposition.Options{
		Mode:            opts.Mode,
		Rotate:          opts.Rotate,
		Reverse:         opts.Reverse,
		TotalFinalPages: opts.TotalPages,
		Blank:           opts.Blank,
		Workers:         opts.Workers,
		Logger:          &lg,
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := doc.Write(out, res.Placements); err != nil {
		return nil, err
	}

	return &Report{
		Mode:            opts.Mode.String(),
		Sheets:          len(sheets),
		OutputPages:     len(res.Placements),
		TotalFinalPages: res.TotalFinalPages,
		Padded:          res.Padded,
		Blanks:          res.Blanks,
		Skipped:         res.Skipped,
		Duplicates:      res.Duplicates,
	}, nil
}
