package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/local/sheetsplit/internal/convert"
	"github.com/local/sheetsplit/internal/imposition"
)

type convertFlags struct {
	output   string
	reverse  bool
	rotate   bool
	pages    int
	workers  int
	password string
}

// NewSplitCommand creates the simple split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "split <input.pdf>",
		Short: "Halve every sheet and keep scan order",
		Long: `Halve every sheet of a scanned PDF. Landscape sheets are cut into a left
and a right half, portrait sheets into a top and a bottom half. The halves
are written in sheet order, first half first unless --reverse is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, rootOpts, args[0], imposition.ModeSimple, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default <input>_A4.pdf)")
	cmd.Flags().BoolVarP(&f.reverse, "reverse", "v", false, "emit the second half of each sheet first")
	cmd.Flags().BoolVarP(&f.rotate, "rotate", "r", false, "rotate every half by 90 degrees")
	cmd.Flags().StringVar(&f.password, "password", "", "password of an encrypted input")
	return cmd
}

// NewBookletCommand creates the booklet reorder command.
func NewBookletCommand(rootOpts *RootOptions) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "booklet <input.pdf>",
		Short: "Unbind a scanned saddle-stitched booklet into reading order",
		Long: `Halve every sheet of a scanned saddle-stitched booklet and put each half at
its reading position. The page count defaults to two pages per sheet and is
rounded up to a multiple of 4. Positions no sheet provides become blank pages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, rootOpts, args[0], imposition.ModeBooklet, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default <input>_booklet.pdf)")
	cmd.Flags().IntVarP(&f.pages, "pages", "p", 0, "total pages of the booklet (default: auto-detect)")
	cmd.Flags().BoolVarP(&f.rotate, "rotate", "r", false, "rotate every half by 90 degrees")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "sheets split concurrently (default from config)")
	cmd.Flags().StringVar(&f.password, "password", "", "password of an encrypted input")
	return cmd
}

// checkInput accepts existing files with a .pdf extension.
func checkInput(path string) error {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file %q not found", path)
	}
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return errors.New("input must be a PDF file")
	}
	return nil
}

func runConvert(cmd *cobra.Command, rootOpts *RootOptions, input string, mode imposition.Mode, f *convertFlags) error {
	if err := checkInput(input); err != nil {
		return err
	}
	out := f.output
	if out == "" {
		out = filepath.Join(filepath.Dir(input), convert.OutputName(filepath.Base(input), mode))
	}
	if abs(out) == abs(input) {
		return errors.New("output would overwrite the input")
	}

	sp := rootOpts.Config.Split
	opts := convert.Options{
		Mode:       mode,
		Rotate:     f.rotate,
		Reverse:    f.reverse,
		TotalPages: f.pages,
		Blank:      imposition.Size{Width: sp.BlankWidth, Height: sp.BlankHeight},
		Workers:    sp.Workers,
		Password:   f.password,
	}
	if f.workers > 0 {
		opts.Workers = f.workers
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(out), ".sheetsplit-*.pdf")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	rep, err := convert.Convert(cmd.Context(), in, tmp, opts)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return printReport(cmd.OutOrStdout(), rootOpts.Format, out, rep)
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

func printReport(w io.Writer, format, out string, rep *convert.Report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Output string `json:"output"`
			*convert.Report
		}{out, rep})
	}
	fmt.Fprintf(w, "Split %d sheets into %d pages (%s)\n", rep.Sheets, rep.OutputPages, rep.Mode)
	if rep.Padded {
		fmt.Fprintf(w, "Page count padded to %d\n", rep.TotalFinalPages)
	}
	if rep.Blanks > 0 {
		fmt.Fprintf(w, "Blank pages: %d\n", rep.Blanks)
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped sheets beyond the booklet: %v\n", rep.Skipped)
	}
	if len(rep.Duplicates) > 0 {
		fmt.Fprintf(w, "Pages provided twice (last kept): %v\n", rep.Duplicates)
	}
	fmt.Fprintf(w, "Success! Output saved as: %s\n", out)
	return nil
}
