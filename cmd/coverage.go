package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/merge"
)

var coverageOut string

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report canonical field coverage",
	Long:  "Counts how many plants have each merge-managed field populated, as a table or an xlsx workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		cat := catalog.New(pool)
		total, err := cat.CountPlants(ctx)
		if err != nil {
			return eris.Wrap(err, "coverage")
		}
		counts, err := cat.PlantFieldCoverage(ctx, merge.Fields())
		if err != nil {
			return eris.Wrap(err, "coverage")
		}

		rows := coverageRows(total, counts)

		if coverageOut != "" {
			if err := writeCoverageXLSX(coverageOut, total, rows); err != nil {
				return err
			}
			fmt.Printf("Wrote %d fields to %s.\n", len(rows), coverageOut)
			return nil
		}

		formatCoverage(os.Stdout, total, rows)
		return nil
	},
}

func init() {
	coverageCmd.Flags().StringVar(&coverageOut, "out", "", "write an xlsx workbook instead of a table")
	rootCmd.AddCommand(coverageCmd)
}

// coverageRow is one field's fill count, in merge report order.
type coverageRow struct {
	Field  string  `json:"field"`
	Filled int64   `json:"filled"`
	Pct    float64 `json:"pct"`
}

// coverageRows orders the raw counts by the merge field list and computes
// percentages against the plant total.
func coverageRows(total int64, counts map[string]int64) []coverageRow {
	fields := merge.Fields()
	rows := make([]coverageRow, 0, len(fields))
	for _, f := range fields {
		n := counts[f]
		var pct float64
		if total > 0 {
			pct = float64(n) * 100 / float64(total)
		}
		rows = append(rows, coverageRow{Field: f, Filled: n, Pct: pct})
	}
	return rows
}

// formatCoverage writes a tabular coverage report to w.
func formatCoverage(out io.Writer, total int64, rows []coverageRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tFILLED\tPCT")
	_, _ = fmt.Fprintln(w, "-----\t------\t---")

	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", r.Field, r.Filled, r.Pct)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nTotal plants: %d\n", total)
}

// writeCoverageXLSX writes the coverage report as a single-sheet workbook.
func writeCoverageXLSX(path string, total int64, rows []coverageRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Coverage")
	if err != nil {
		return eris.Wrap(err, "coverage sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Field", "Filled", "Total", "Pct"} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Field)
		row.AddCell().SetInt64(r.Filled)
		row.AddCell().SetInt64(total)
		row.AddCell().SetFloat(r.Pct)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "write workbook")
	}
	return nil
}
