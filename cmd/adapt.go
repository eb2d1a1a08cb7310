package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"catalog-adaptation-service/internal/config"
	"catalog-adaptation-service/internal/export"
	"catalog-adaptation-service/internal/ingest"
	"catalog-adaptation-service/internal/models"
)

func newAdaptCmd() *cobra.Command {
	var (
		file        string
		marketplace string
		out         string
		format      string
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "adapt",
		Short: "Adapt a catalog file to a marketplace template",
		Long: `Reads a CSV, XLSX or JSON catalog, adapts every valid row to the template
of the chosen marketplace and writes the adapted records.

Rows without a SKU or title are reported and skipped. A progress line is
printed to stderr for every product.`,
		Example: `  # Adapt a spreadsheet for Namshi and print JSON
  catalog-adapter adapt --file catalog.xlsx --marketplace namshi

  # Write an Amazon upload sheet
  catalog-adapter adapt -f catalog.csv -m amazon -o amazon.xlsx --format xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := models.ParseMarketplaceKey(marketplace)
			if err != nil {
				return err
			}
			if format == "" && out != "" {
				format = strings.TrimPrefix(filepath.Ext(out), ".")
			}
			exportFormat, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			cfg := config.Load()
			logger := newLogger(cfg, stderr)
			if quiet {
				logger.SetOutput(io.Discard)
			}

			lib, registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			adapter, err := newAdaptationService(cmd.Context(), cfg, logger, lib, registry)
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer f.Close()

			table, err := ingest.ParseFile(file, f)
			if err != nil {
				return err
			}
			normalized := ingest.NormalizeTable(table)
			for _, rowErr := range normalized.Errors {
				fmt.Fprintln(stderr, rowErr.Message)
			}
			if len(normalized.Records) == 0 {
				return errors.New("no valid rows to adapt")
			}

			results, batchErr := adapter.ProcessBatch(cmd.Context(), normalized.Records, key, func(p models.BatchProgress) {
				if !quiet {
					fmt.Fprintf(stderr, "[%3.0f%%] %s, eta %ds\n", p.Percentage, p.CurrentStep, p.ETASeconds())
				}
			})
			if batchErr != nil && len(results) == 0 {
				return batchErr
			}

			tmpl, err := adapter.Template(key)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				outFile, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer outFile.Close()
				w = outFile
			}
			if err := export.Write(w, exportFormat, tmpl, results); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			printSummary(stderr, results)
			return batchErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog file (.csv, .xlsx or .json)")
	cmd.Flags().StringVarP(&marketplace, "marketplace", "m", "", "Target marketplace")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default stdout)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json, csv, xlsx or parquet")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress and log output")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("marketplace")

	return cmd
}

func printSummary(w io.Writer, results []models.AdaptationResult) {
	var succeeded, withIssues, sum int
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
			sum += r.Confidence
		}
		if len(r.Issues) > 0 {
			withIssues++
		}
	}
	avg := 0.0
	if succeeded > 0 {
		avg = float64(sum) / float64(succeeded)
	}
	fmt.Fprintf(w, "Adapted %d of %d products, %d need review, average confidence %.1f\n",
		succeeded, len(results), withIssues, avg)
}
