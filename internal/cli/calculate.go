package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	billing "meterbill/internal/billing/domain"
	"meterbill/internal/billing/interfaces"
)

type calculateFlags struct {
	input string

	prevDate, currDate string
	prevMain, currMain string
	prevSub, currSub   []string
	labels             []string
	rate, standing     string
	split, percentage  string

	save    bool
	pdf     string
	xlsx    string
	asJSON  bool
	rawJSON bool
}

func newCalculateCmd(a *app) *cobra.Command {
	f := &calculateFlags{}
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Validate readings and print the itemized bill",
		Long: `Validate a reading set and split the bill between the main property and its sub-meters.

Readings come from --input (YAML or JSON) and the field flags; flags win.
Blank rates and split settings are taken from stored settings, and blank
previous readings from the most recent saved reading.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.readingInput(cmd)
			if err != nil {
				return err
			}
			return runCalculate(cmd, a, f, in)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "reading set file (.yaml, .yml or .json)")
	fl.StringVar(&f.prevDate, "prev-date", "", "previous reading date, DD-MM-YYYY")
	fl.StringVar(&f.currDate, "curr-date", "", "current reading date, DD-MM-YYYY")
	fl.StringVar(&f.prevMain, "prev-main", "", "previous main meter reading, kWh")
	fl.StringVar(&f.currMain, "curr-main", "", "current main meter reading, kWh")
	fl.StringSliceVar(&f.prevSub, "prev-sub", nil, "previous sub-meter readings, comma separated")
	fl.StringSliceVar(&f.currSub, "curr-sub", nil, "current sub-meter readings, comma separated")
	fl.StringSliceVar(&f.labels, "labels", nil, "sub-meter labels, comma separated")
	fl.StringVar(&f.rate, "rate", "", "unit rate, pence per kWh")
	fl.StringVar(&f.standing, "standing-charge", "", "standing charge, pence per day")
	fl.StringVar(&f.split, "split", "", "standing charge split: equal, usage or custom")
	fl.StringVar(&f.percentage, "custom-percentage", "", "main property share for the custom split, 0-100")
	fl.BoolVar(&f.save, "save", false, "save the bill to history")
	fl.StringVar(&f.pdf, "pdf", "", "write a PDF report to this path")
	fl.StringVar(&f.xlsx, "xlsx", "", "write an XLSX report to this path")
	fl.BoolVar(&f.asJSON, "json", false, "print the bill as JSON")
	fl.BoolVar(&f.rawJSON, "raw", false, "skip display rounding")
	return cmd
}

func (f *calculateFlags) readingInput(cmd *cobra.Command) (billing.ReadingInput, error) {
	var in billing.ReadingInput
	if f.input != "" {
		loaded, err := readInputFile(f.input)
		if err != nil {
			return billing.ReadingInput{}, err
		}
		in = loaded
	}

	fl := cmd.Flags()
	if fl.Changed("prev-date") {
		in.PrevDate = f.prevDate
	}
	if fl.Changed("curr-date") {
		in.CurrDate = f.currDate
	}
	if fl.Changed("prev-main") {
		in.PrevMain = billing.Figure(f.prevMain)
	}
	if fl.Changed("curr-main") {
		in.CurrMain = billing.Figure(f.currMain)
	}
	if fl.Changed("prev-sub") {
		in.PrevSub = figures(f.prevSub)
	}
	if fl.Changed("curr-sub") {
		in.CurrSub = figures(f.currSub)
	}
	if fl.Changed("labels") {
		in.SubMeterLabels = append([]string(nil), f.labels...)
	}
	if fl.Changed("rate") {
		in.RatePerKWh = billing.Figure(f.rate)
	}
	if fl.Changed("standing-charge") {
		in.StandingCharge = billing.Figure(f.standing)
	}
	if fl.Changed("split") {
		in.StandingChargeSplit = f.split
	}
	if fl.Changed("custom-percentage") {
		in.CustomSplitPercentage = billing.Figure(f.percentage)
	}
	return in, nil
}

func readInputFile(path string) (billing.ReadingInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return billing.ReadingInput{}, fmt.Errorf("read input: %w", err)
	}
	var in billing.ReadingInput
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &in)
	} else {
		err = yaml.Unmarshal(data, &in)
	}
	if err != nil {
		return billing.ReadingInput{}, fmt.Errorf("decode input %s: %w", path, err)
	}
	return in, nil
}

func figures(values []string) []billing.Figure {
	out := make([]billing.Figure, len(values))
	for i, v := range values {
		out[i] = billing.Figure(strings.TrimSpace(v))
	}
	return out
}

func runCalculate(cmd *cobra.Command, a *app, f *calculateFlags, in billing.ReadingInput) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	outcome, err := a.svc.Calculate(ctx, in)
	printValidation(out, outcome.Validation)
	if err != nil {
		return err
	}

	shown := *outcome.Calculation
	if !f.rawJSON {
		shown, err = a.svc.Formatted(ctx)
		if err != nil {
			return err
		}
	}
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(shown); err != nil {
			return err
		}
	} else {
		printBill(out, shown)
	}

	if f.save {
		saved, err := a.svc.SaveCurrent(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved reading %s\n", saved.ID)
	}

	reports := []struct{ format, path string }{
		{interfaces.FormatPDF, f.pdf},
		{interfaces.FormatXLSX, f.xlsx},
	}
	for _, r := range reports {
		if r.path == "" {
			continue
		}
		if err := writeReport(cmd, a, r.format, *outcome.Calculation, r.path); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(cmd *cobra.Command, a *app, format string, calc billing.BillCalculation, path string) error {
	opts, err := a.reportOptions(cmd)
	if err != nil {
		return err
	}
	data, err := interfaces.RenderReport(format, calc, opts)
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s report to %s\n", strings.ToUpper(format), path)
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
