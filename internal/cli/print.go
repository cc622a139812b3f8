package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	billing "meterbill/internal/billing/domain"
	"meterbill/internal/billing/interfaces"
)

func printValidation(w io.Writer, result billing.ValidationResult) {
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "error: %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

func printBill(w io.Writer, calc billing.BillCalculation) {
	fmt.Fprintf(w, "Period %s to %s (%d days)\n", calc.Readings.PrevDate, calc.Readings.CurrDate, calc.PeriodDays)
	fmt.Fprintf(w, "Rate %s per kWh, standing charge %s per day, split %s\n\n",
		interfaces.Pence(calc.Rates.RatePerKWh), interfaces.Pence(calc.Rates.StandingCharge), calc.Rates.StandingChargeSplit)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Meter\tUsage kWh\tEnergy\tStanding\tTotal\t")
	row := func(c billing.MeterCost, label string) {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\t\n", label, c.Usage, interfaces.Money(c.EnergyCost), interfaces.Money(c.StandingCharge), interfaces.Money(c.Total))
	}
	row(calc.Costs.Property, calc.MeterLabels.Property)
	for i, c := range calc.Costs.SubMeters {
		row(c, billing.SubMeterLabel(calc.MeterLabels.SubMeters, i))
	}
	fmt.Fprintf(tw, "Total\t%.2f\t\t%s\t%s\t\n", calc.Usages.Total, interfaces.Money(calc.Costs.TotalStandingCharge), interfaces.Money(calc.Costs.Total))
	_ = tw.Flush()
}

func printHistory(w io.Writer, entries []billing.ReadingHistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tTO\tDAYS\tUSAGE KWH\tTOTAL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\n", e.ID, e.PreviousDate, e.Date, e.PeriodDays, e.Usages.Main, interfaces.Money(e.Costs.Total))
	}
	_ = tw.Flush()
}
