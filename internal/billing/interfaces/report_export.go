package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	billing "meterbill/internal/billing/domain"
	"meterbill/internal/observability/metrics"
)

// Report formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ErrUnknownFormat is returned for report formats other than pdf and xlsx.
var ErrUnknownFormat = errors.New("report: unknown format")

// ReportOptions carries the report header.
type ReportOptions struct {
	PropertyName    string
	PropertyAddress string
	GeneratedAt     time.Time
}

var printer = message.NewPrinter(language.BritishEnglish)

// Money formats pounds as "£1,234.56".
func Money(pounds float64) string {
	return printer.Sprintf("£%.2f", pounds)
}

// Pence formats a rate in pence as "28.50p".
func Pence(pence float64) string {
	return printer.Sprintf("%.2fp", pence)
}

func kwh(v float64) string {
	return printer.Sprintf("%.2f kWh", v)
}

// RenderReport builds the report for calc in format and records export metrics.
func RenderReport(format string, calc billing.BillCalculation, opts ReportOptions) ([]byte, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	start := time.Now()
	var data []byte
	var err error
	switch format {
	case FormatPDF:
		data, err = BuildBillPDF(calc, opts)
	case FormatXLSX:
		data, err = BuildBillXLSX(calc, opts)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReportExport(format, result, time.Since(start))
	return data, err
}

type billRow struct {
	label    string
	usage    float64
	energy   float64
	standing float64
	total    float64
}

// figureAt formats values[i], or "-" when there is no such figure.
func figureAt(values []float64, i int) string {
	if i >= len(values) {
		return "-"
	}
	return fmt.Sprintf("%.2f", values[i])
}

func billRows(calc billing.BillCalculation) []billRow {
	label := calc.MeterLabels.Property
	if label == "" {
		label = billing.PropertyLabel
	}
	p := calc.Costs.Property
	rows := []billRow{{label: label, usage: p.Usage, energy: p.EnergyCost, standing: p.StandingCharge, total: p.Total}}
	for i, c := range calc.Costs.SubMeters {
		name := c.Label
		if name == "" {
			name = billing.SubMeterLabel(calc.MeterLabels.SubMeters, i)
		}
		rows = append(rows, billRow{label: name, usage: c.Usage, energy: c.EnergyCost, standing: c.StandingCharge, total: c.Total})
	}
	return rows
}

// BuildBillPDF renders an itemized bill.
func BuildBillPDF(calc billing.BillCalculation, opts ReportOptions) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Electricity Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if opts.PropertyName != "" {
		pdf.Cell(0, 6, tr(opts.PropertyName))
		pdf.Ln(5)
	}
	if opts.PropertyAddress != "" {
		pdf.MultiCell(0, 5, tr(opts.PropertyAddress), "", "L", false)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s (%d days)", calc.Readings.PrevDate, calc.Readings.CurrDate, calc.PeriodDays))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Rate: %s per kWh, standing charge %s per day (%s split)",
		Pence(calc.Rates.RatePerKWh), Pence(calc.Rates.StandingCharge), splitDescription(calc.Rates))))
	pdf.Ln(5)
	if !opts.GeneratedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", opts.GeneratedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Meter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Previous", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Current", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Usage (kWh)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(50, 6, tr(calc.MeterLabels.Property), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", calc.Readings.PrevMain), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", calc.Readings.CurrMain), "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", calc.Usages.Main), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	subs := max(len(calc.Readings.PrevSub), len(calc.Readings.CurrSub), len(calc.Usages.SubMeters))
	for i := 0; i < subs; i++ {
		pdf.CellFormat(50, 6, tr(billing.SubMeterLabel(calc.MeterLabels.SubMeters, i)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, figureAt(calc.Readings.PrevSub, i), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, figureAt(calc.Readings.CurrSub, i), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, figureAt(calc.Usages.SubMeters, i), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Charges", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Usage", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Energy", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Standing", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range billRows(calc) {
		pdf.CellFormat(50, 6, tr(row.label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, kwh(row.usage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, tr(Money(row.energy)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, tr(Money(row.standing)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, tr(Money(row.total)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(115, 6, "Total standing charge", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, tr(Money(calc.Costs.TotalStandingCharge)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(115, 6, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, tr(Money(calc.Costs.Total)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBillXLSX renders a bill workbook with summary and charges sheets.
func BuildBillXLSX(calc billing.BillCalculation, opts ReportOptions) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	chargesSheet := "charges"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(chargesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Electricity Bill")
	_ = f.SetCellValue(summarySheet, "A3", "Property")
	_ = f.SetCellValue(summarySheet, "B3", opts.PropertyName)
	_ = f.SetCellValue(summarySheet, "A4", "Address")
	_ = f.SetCellValue(summarySheet, "B4", opts.PropertyAddress)
	_ = f.SetCellValue(summarySheet, "A5", "Previous date")
	_ = f.SetCellValue(summarySheet, "B5", calc.Readings.PrevDate)
	_ = f.SetCellValue(summarySheet, "A6", "Current date")
	_ = f.SetCellValue(summarySheet, "B6", calc.Readings.CurrDate)
	_ = f.SetCellValue(summarySheet, "A7", "Days")
	_ = f.SetCellValue(summarySheet, "B7", calc.PeriodDays)
	_ = f.SetCellValue(summarySheet, "A8", "Rate (p/kWh)")
	_ = f.SetCellValue(summarySheet, "B8", calc.Rates.RatePerKWh)
	_ = f.SetCellValue(summarySheet, "A9", "Standing charge (p/day)")
	_ = f.SetCellValue(summarySheet, "B9", calc.Rates.StandingCharge)
	_ = f.SetCellValue(summarySheet, "A10", "Split")
	_ = f.SetCellValue(summarySheet, "B10", splitDescription(calc.Rates))
	_ = f.SetCellValue(summarySheet, "A11", "Main usage (kWh)")
	_ = f.SetCellValue(summarySheet, "B11", calc.Usages.Main)
	_ = f.SetCellValue(summarySheet, "A12", "Total standing charge (GBP)")
	_ = f.SetCellValue(summarySheet, "B12", calc.Costs.TotalStandingCharge)
	_ = f.SetCellValue(summarySheet, "A13", "Total (GBP)")
	_ = f.SetCellValue(summarySheet, "B13", calc.Costs.Total)
	if !opts.GeneratedAt.IsZero() {
		_ = f.SetCellValue(summarySheet, "A14", "Generated")
		_ = f.SetCellValue(summarySheet, "B14", opts.GeneratedAt.Format(time.RFC3339))
	}

	_ = f.SetCellValue(chargesSheet, "A1", "Meter")
	_ = f.SetCellValue(chargesSheet, "B1", "Usage (kWh)")
	_ = f.SetCellValue(chargesSheet, "C1", "Energy (GBP)")
	_ = f.SetCellValue(chargesSheet, "D1", "Standing (GBP)")
	_ = f.SetCellValue(chargesSheet, "E1", "Total (GBP)")
	for i, row := range billRows(calc) {
		r := i + 2
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("A%d", r), row.label)
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("B%d", r), row.usage)
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("C%d", r), row.energy)
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("D%d", r), row.standing)
		_ = f.SetCellValue(chargesSheet, fmt.Sprintf("E%d", r), row.total)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders saved readings, one row per entry, oldest first.
func BuildHistoryXLSX(entries []billing.ReadingHistoryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "history"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{"ID", "Previous date", "Date", "Days", "Previous main", "Main", "Main usage (kWh)",
		"Property usage (kWh)", "Sub-meter usage (kWh)", "Standing charge (GBP)", "Total (GBP)", "Split", "Created"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, h)
	}

	sorted := make([]billing.ReadingHistoryEntry, len(entries))
	copy(sorted, entries)
	billing.SortEntries(sorted)
	for i, e := range sorted {
		r := i + 2
		var subUsage float64
		for _, u := range e.Usages.SubMeters {
			subUsage += u
		}
		values := []any{e.ID, e.PreviousDate, e.Date, e.PeriodDays, e.PreviousMainReading, e.MainReading,
			e.Usages.Main, e.Usages.Property, subUsage, e.Costs.TotalStandingCharge, e.Costs.Total,
			e.Rates.StandingChargeSplit, e.CreatedAt.Format(time.RFC3339)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitDescription(r billing.Rates) string {
	if r.StandingChargeSplit == billing.SplitNameCustom {
		return fmt.Sprintf("custom, property %.0f%%", r.CustomSplitPercentage)
	}
	if r.StandingChargeSplit == "" {
		return billing.SplitNameEqual
	}
	return r.StandingChargeSplit
}
