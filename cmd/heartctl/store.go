package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heart-risk-service/internal/dataset"
	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/warehouse"
)

func newBuildCmd(a *app) *cobra.Command {
	var source, dest string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Normalize the source CSV into the relational store",
		Long: `Read the flat source table and write the normalized store: one lookup
table per categorical field, a patients table and an exams table.

The store is built in a temporary file next to the destination and swapped in
atomically, so readers never see a partial store and a failed build leaves the
previous one untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				source = a.config.Store.SourceCSV
			}
			if dest == "" {
				dest = a.config.Store.WarehousePath
			}

			report, err := warehouse.NewBuilder(a.logger).BuildFromCSV(cmd.Context(), source, dest)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ Built %s in %s\n", report.Path, report.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  patients  %d\n", report.Patients)
			fmt.Fprintf(out, "  exams     %d\n", report.Exams)
			for _, column := range domain.CategoricalColumns {
				fmt.Fprintf(out, "  %-9s %v\n", column, report.Lookups[column])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source CSV (default: store.source_csv)")
	cmd.Flags().StringVarP(&dest, "db", "d", "", "store file (default: store.warehouse_path)")
	return cmd
}

func newReconstructCmd(a *app) *cobra.Command {
	var dbPath, output string

	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild the flat table from the store as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = a.config.Store.WarehousePath
			}

			rows, err := warehouse.Reconstruct(cmd.Context(), dbPath)
			if err != nil {
				return fmt.Errorf("reconstruct failed: %w", err)
			}

			if output == "" {
				return dataset.WriteCSV(cmd.OutOrStdout(), rows)
			}

			if err := writeFile(output, func(w io.Writer) error { return dataset.WriteCSV(w, rows) }); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s\n", len(rows), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dbPath, "db", "d", "", "store file (default: store.warehouse_path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var dbPath, source string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check referential integrity, lookup completeness and round-trip",
		Long: `Verify the store:

  integrity     every exam points at an existing patient and lookup code
  lookups       each lookup holds exactly the codes the exams use
  round-trip    with --source, the reconstructed table equals the source`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = a.config.Store.WarehousePath
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen)

			reader, err := warehouse.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer reader.Close()

			if err := reader.CheckIntegrity(ctx); err != nil {
				return err
			}
			ok.Fprintln(out, "✓ referential integrity")

			counts, err := reader.Counts(ctx)
			if err != nil {
				return err
			}
			for _, table := range warehouse.Tables() {
				fmt.Fprintf(out, "  %-15s %d\n", table, counts[table])
			}

			rows, err := reader.Rows(ctx)
			if err != nil {
				return err
			}
			for _, column := range domain.CategoricalColumns {
				codes, err := reader.Lookups(ctx, column)
				if err != nil {
					return err
				}
				used := warehouse.DistinctCodes(rows, column)
				if missing := missingCodes(used, codes); len(missing) > 0 {
					return fmt.Errorf("lookup %s is missing codes %v: %w", column, missing, domain.ErrQuery)
				}
				if extra := unusedCodes(used, codes); len(extra) > 0 {
					return fmt.Errorf("lookup %s has codes %v not used by any exam: %w", column, extra, domain.ErrQuery)
				}
			}
			ok.Fprintln(out, "✓ lookup completeness")

			if source != "" {
				want, err := dataset.ReadFile(source)
				if err != nil {
					return err
				}
				if err := sameRows(want, rows); err != nil {
					return err
				}
				ok.Fprintf(out, "✓ round-trip matches %s (%d rows)\n", source, len(rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dbPath, "db", "d", "", "store file (default: store.warehouse_path)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "source CSV to compare against")
	return cmd
}

func missingCodes(used []int, lookups []warehouse.LookupCode) []int {
	have := make(map[int]bool, len(lookups))
	for _, l := range lookups {
		have[l.Code] = true
	}
	var missing []int
	for _, code := range used {
		if !have[code] {
			missing = append(missing, code)
		}
	}
	sort.Ints(missing)
	return missing
}

func unusedCodes(used []int, lookups []warehouse.LookupCode) []int {
	seen := make(map[int]bool, len(used))
	for _, code := range used {
		seen[code] = true
	}
	var extra []int
	for _, l := range lookups {
		if !seen[l.Code] {
			extra = append(extra, l.Code)
		}
	}
	sort.Ints(extra)
	return extra
}

// sameRows compares row multisets; the store does not keep source order.
func sameRows(want, got []domain.Row) error {
	if len(want) != len(got) {
		return fmt.Errorf("round-trip: source has %d rows, store has %d: %w", len(want), len(got), domain.ErrQuery)
	}
	counts := make(map[domain.Row]int, len(want))
	for _, r := range want {
		counts[r]++
	}
	for _, r := range got {
		if counts[r] == 0 {
			return fmt.Errorf("round-trip: row %+v not in source: %w", r, domain.ErrQuery)
		}
		counts[r]--
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
