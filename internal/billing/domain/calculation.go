package billing

// PropertyLabel is the display name of the unmetered remainder of the main meter.
const PropertyLabel = "Main Property"

// BillCalculation is an itemized bill for one reading period. Monetary values are in pounds.
type BillCalculation struct {
	PeriodDays  int         `json:"periodDays"`
	Readings    Readings    `json:"readings"`
	Rates       Rates       `json:"rates"`
	Usages      Usages      `json:"usages"`
	Costs       Costs       `json:"costs"`
	MeterLabels MeterLabels `json:"meterLabels"`
}

// Readings echoes the meter readings a calculation was made from.
type Readings struct {
	PrevDate string    `json:"prevDate"`
	CurrDate string    `json:"currDate"`
	PrevMain float64   `json:"prevMain"`
	CurrMain float64   `json:"currMain"`
	PrevSub  []float64 `json:"prevSub"`
	CurrSub  []float64 `json:"currSub"`
}

// Rates echoes the tariff inputs. RatePerKWh and StandingCharge are in pence.
type Rates struct {
	RatePerKWh            float64 `json:"ratePerKwh"`
	StandingCharge        float64 `json:"standingCharge"`
	StandingChargeSplit   string  `json:"standingChargeSplit"`
	CustomSplitPercentage float64 `json:"customSplitPercentage"`
}

// Usages holds consumption in kWh. Property is derived, never measured.
type Usages struct {
	Main      float64   `json:"main"`
	Property  float64   `json:"property"`
	SubMeters []float64 `json:"subMeters"`
	Total     float64   `json:"total"`
}

// MeterCost is the cost breakdown of one billed party.
type MeterCost struct {
	Label          string  `json:"label,omitempty"`
	Usage          float64 `json:"usage"`
	EnergyCost     float64 `json:"energyCost"`
	StandingCharge float64 `json:"standingCharge"`
	Total          float64 `json:"total"`
}

// Costs is the itemized cost breakdown.
type Costs struct {
	Property            MeterCost   `json:"property"`
	SubMeters           []MeterCost `json:"subMeters"`
	TotalStandingCharge float64     `json:"totalStandingCharge"`
	Total               float64     `json:"total"`
}

// MeterLabels names the billed parties.
type MeterLabels struct {
	Property  string   `json:"property"`
	SubMeters []string `json:"subMeters"`
}

// Clone returns a deep copy. Nil slices stay nil.
func (c BillCalculation) Clone() BillCalculation {
	out := c
	out.Readings.PrevSub = cloneFloats(c.Readings.PrevSub)
	out.Readings.CurrSub = cloneFloats(c.Readings.CurrSub)
	out.Usages.SubMeters = cloneFloats(c.Usages.SubMeters)
	if c.Costs.SubMeters != nil {
		out.Costs.SubMeters = append([]MeterCost{}, c.Costs.SubMeters...)
	}
	out.MeterLabels.SubMeters = cloneStrings(c.MeterLabels.SubMeters)
	return out
}

func cloneFloats(values []float64) []float64 {
	if values == nil {
		return nil
	}
	return append([]float64{}, values...)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
