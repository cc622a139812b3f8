package billing

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestReadingInput_DecodesNumbersAndStrings(t *testing.T) {
	payload := `{"prevDate":"01-01-2025","currDate":"31-01-2025","prevMain":1000,"currMain":"1300",
		"prevSub":[500],"currSub":["650"],"ratePerKwh":28.5,"standingCharge":null}`
	var in ReadingInput
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if in.PrevMain != "1000" || in.CurrMain != "1300" || in.RatePerKWh != "28.5" {
		t.Fatalf("unexpected figures: %+v", in)
	}
	if !in.StandingCharge.IsBlank() {
		t.Fatalf("null must decode as blank, got %q", in.StandingCharge)
	}

	doc := "prevMain: 1000\ncurrSub: [650, \"700.5\"]\ncustomSplitPercentage: ~\n"
	var fromYAML ReadingInput
	if err := yaml.Unmarshal([]byte(doc), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if fromYAML.PrevMain != "1000" || fromYAML.CurrSub[1] != "700.5" || !fromYAML.CustomSplitPercentage.IsBlank() {
		t.Fatalf("unexpected yaml figures: %+v", fromYAML)
	}
}

func TestFigureFloat(t *testing.T) {
	if v, err := Figure(" 12.5 ").Float(); err != nil || v != 12.5 {
		t.Fatalf("unexpected parse: %v %v", v, err)
	}
	if _, err := Figure("").Float(); !errors.Is(err, ErrEmptyFigure) {
		t.Fatalf("expected empty figure error, got %v", err)
	}
	for _, raw := range []string{"abc", "NaN", "Inf", "-Inf"} {
		if _, err := Figure(raw).Float(); !errors.Is(err, ErrNotANumber) {
			t.Fatalf("%q: expected not a number, got %v", raw, err)
		}
	}
	if FigureOf(0.1) != "0.1" {
		t.Fatalf("unexpected formatting: %q", FigureOf(0.1))
	}
}

func TestParseReadingInput(t *testing.T) {
	in := shopInput()
	in.StandingChargeSplit = "custom"
	in.CustomSplitPercentage = "70"
	set, err := ParseReadingInput(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set.CurrMain != 1300 || set.PrevSub[0] != 500 || set.CurrSub[0] != 650 || set.Labels[0] != "Shop" {
		t.Fatalf("unexpected readings: %+v", set)
	}
	if set.Split.Kind() != SplitCustom || set.Split.Percentage() != 70 || set.RatePerKWh != 28 {
		t.Fatalf("unexpected tariff: %+v", set)
	}
	if FormatDate(set.CurrDate) != "31-01-2025" {
		t.Fatalf("unexpected current date: %v", set.CurrDate)
	}

	in.CurrMain = "abc"
	if _, err := ParseReadingInput(in); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}
