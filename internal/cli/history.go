package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	billing "meterbill/internal/billing/domain"
	"meterbill/internal/billing/interfaces"
	history "meterbill/internal/history/domain"
)

var errNoReadings = errors.New("no saved readings")

func newHistoryCmd(a *app) *cobra.Command {
	var chart bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved readings, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.svc.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No saved readings")
				return nil
			}
			printHistory(out, entries)
			if chart {
				fmt.Fprintln(out)
				fmt.Fprintln(out, usageChart(entries))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chart, "chart", false, "plot daily usage per period")
	return cmd
}

// usageChart plots average kWh per day for each saved period.
func usageChart(entries []billing.ReadingHistoryEntry) string {
	data := make([]float64, 0, len(entries))
	for _, e := range entries {
		days := e.PeriodDays
		if days < 1 {
			days = 1
		}
		data = append(data, e.Usages.Main/float64(days))
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Precision(1),
		asciigraph.Caption(fmt.Sprintf("kWh per day, %s to %s", entries[0].Date, entries[len(entries)-1].Date)),
	)
}

func newReportCmd(a *app) *cobra.Command {
	var id, format, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the PDF or XLSX bill of a saved reading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var entry billing.ReadingHistoryEntry
			if id != "" {
				found, err := a.svc.FindReading(ctx, id)
				if err != nil {
					return err
				}
				entry = found
			} else {
				latest, err := a.svc.LatestReading(ctx)
				if err != nil {
					return err
				}
				if latest == nil {
					return errNoReadings
				}
				entry = *latest
			}
			format = strings.ToLower(format)
			if outPath == "" {
				outPath = fmt.Sprintf("bill-%s.%s", entry.Date, format)
			}
			return writeReport(cmd, a, format, billing.CalculationFromHistoryEntry(entry), outPath)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "reading ID (default latest)")
	cmd.Flags().StringVarP(&format, "format", "f", interfaces.FormatPDF, "pdf or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default bill-<date>.<format>)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var outPath, xlsxPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export readings and settings as a checksummed JSON snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap, err := a.svc.Export(ctx)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				err = writeFile(outPath, data)
			}
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				book, err := interfaces.BuildHistoryXLSX(snap.Readings)
				if err != nil {
					return err
				}
				if err := writeFile(xlsxPath, book); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "snapshot path, - for stdout")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the readings as a spreadsheet")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace readings and settings with a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var snap history.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("%w: %v", history.ErrInvalidSnapshot, err)
			}
			if err := a.svc.Import(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d readings and %d settings\n", len(snap.Readings), len(snap.Settings))
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "snapshot path")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
