package interfaces

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	billing "meterbill/internal/billing/domain"
)

func sampleCalculation(t *testing.T) billing.BillCalculation {
	t.Helper()
	calc, err := billing.CalculateBill(billing.ReadingInput{
		PrevDate:              "01-01-2025",
		CurrDate:              "31-01-2025",
		PrevMain:              "1000",
		CurrMain:              "1300",
		PrevSub:               []billing.Figure{"500"},
		CurrSub:               []billing.Figure{"650"},
		SubMeterLabels:        []string{"Shop"},
		RatePerKWh:            "28",
		StandingCharge:        "140",
		StandingChargeSplit:   "custom",
		CustomSplitPercentage: "70",
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	return billing.FormatCalculation(calc, billing.DefaultFormatOptions())
}

func TestBuildBillPDF(t *testing.T) {
	data, err := BuildBillPDF(sampleCalculation(t), ReportOptions{
		PropertyName:    "Old Mill",
		PropertyAddress: "1 Mill Lane\nYork",
		GeneratedAt:     time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
}

func TestBuildBillPDFWithShortSubMeterFigures(t *testing.T) {
	entry := billing.ReadingHistoryEntry{
		Date:                "31-01-2025",
		PreviousDate:        "01-01-2025",
		MainReading:         1300,
		PreviousMainReading: 1000,
		SubReadings:         []float64{650},
		PreviousSubReadings: []float64{500},
		PeriodDays:          30,
	}
	data, err := BuildBillPDF(billing.CalculationFromHistoryEntry(entry), ReportOptions{})
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
	if _, err := BuildBillXLSX(billing.CalculationFromHistoryEntry(entry), ReportOptions{}); err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
}

func TestFigureAt(t *testing.T) {
	if got := figureAt([]float64{1.5}, 0); got != "1.50" {
		t.Fatalf("expected 1.50, got %q", got)
	}
	if got := figureAt(nil, 2); got != "-" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestBuildBillXLSX(t *testing.T) {
	data, err := BuildBillXLSX(sampleCalculation(t), ReportOptions{PropertyName: "Old Mill"})
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("summary", "B3"); v != "Old Mill" {
		t.Fatalf("expected property name, got %q", v)
	}
	if v, _ := f.GetCellValue("summary", "B7"); v != "30" {
		t.Fatalf("expected 30 days, got %q", v)
	}
	if v, _ := f.GetCellValue("charges", "A3"); v != "Shop" {
		t.Fatalf("expected sub-meter row, got %q", v)
	}
	total, _ := f.GetCellValue("charges", "E2")
	if got, err := strconv.ParseFloat(total, 64); err != nil || got != 71.4 {
		t.Fatalf("expected property total 71.4, got %q", total)
	}
}

func TestBuildHistoryXLSX(t *testing.T) {
	calc := sampleCalculation(t)
	older := billing.CreateReadingHistoryEntry(calc, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	older.ID = "older"
	newer := older.Clone()
	newer.ID = "newer"
	newer.Date = "28-02-2025"

	data, err := BuildHistoryXLSX([]billing.ReadingHistoryEntry{newer, older})
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("history")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "older" || rows[2][0] != "newer" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestRenderReport(t *testing.T) {
	calc := sampleCalculation(t)
	if _, err := RenderReport("PDF", calc, ReportOptions{}); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if _, err := RenderReport("docx", calc, ReportOptions{}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format, got %v", err)
	}
}

func TestMoney(t *testing.T) {
	if got := Money(1234.5); got != "£1,234.50" {
		t.Fatalf("unexpected money format: %q", got)
	}
	if got := Pence(28); got != "28.00p" {
		t.Fatalf("unexpected pence format: %q", got)
	}
}
