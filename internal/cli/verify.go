package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/local/sheetsplit/internal/imposition"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Print and check the booklet page mapping",
		Long: `Print which booklet pages every sheet carries and check that each page
appears exactly once and that the two pages of a sheet sum to pages+1.
For 32 pages the table is also compared with a hand-recorded booklet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), rootOpts.Format, pages)
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", 32, "total pages of the booklet")
	return cmd
}

type verifyRow struct {
	imposition.ImpositionEntry
	Known *imposition.ImpositionEntry `json:"known,omitempty"`
	Match *bool                       `json:"match,omitempty"`
}

type verifyResult struct {
	Pages      int         `json:"pages"`
	Rows       []verifyRow `json:"rows"`
	Matches    int         `json:"matches,omitempty"`
	Invariants string      `json:"invariants"`
	OK         bool        `json:"ok"`
}

func runVerify(w io.Writer, format string, pages int) error {
	table, err := imposition.Table(pages)
	if err != nil {
		return err
	}
	res := verifyResult{Pages: pages, OK: true, Invariants: "ok"}
	if err := imposition.VerifyTable(pages); err != nil {
		res.Invariants = err.Error()
		res.OK = false
	}

	var known []imposition.ImpositionEntry
	if pages == 32 {
		known = imposition.ReferenceBooklet32
	}
	for i, e := range table {
		row := verifyRow{ImpositionEntry: e}
		if known != nil {
			k := known[i]
			match := k == e
			row.Known, row.Match = &k, &match
			if match {
				res.Matches++
			} else {
				res.OK = false
			}
		}
		res.Rows = append(res.Rows, row)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		writeVerifyText(w, res, known != nil)
	}
	if !res.OK {
		return fmt.Errorf("booklet mapping for %d pages failed verification", pages)
	}
	return nil
}

func writeVerifyText(w io.Writer, res verifyResult, withKnown bool) {
	fmt.Fprintf(w, "Booklet mapping for %d pages (%d sheets)\n", res.Pages, len(res.Rows))
	if withKnown {
		fmt.Fprintln(w, "sheet | first | second | known  | match")
	} else {
		fmt.Fprintln(w, "sheet | first | second")
	}
	for _, r := range res.Rows {
		fmt.Fprintf(w, "%5d | %5d | %6d", r.Sheet, r.First, r.Second)
		if r.Known != nil {
			mark := "✓"
			if !*r.Match {
				mark = "✗"
			}
			fmt.Fprintf(w, " | %2d, %2d | %s", r.Known.First, r.Known.Second, mark)
		}
		fmt.Fprintln(w)
	}
	if withKnown {
		fmt.Fprintf(w, "Matches: %d/%d\n", res.Matches, len(res.Rows))
	}
	fmt.Fprintf(w, "Invariants: %s\n", res.Invariants)
}
