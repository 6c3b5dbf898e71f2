package icu

import (
	"fmt"
	"math"
	"strings"

	"github.com/cardioedad/cardioedad/internal/domain/labs"
)

// Convention is the unit a drug's infusion dose is expressed in.
type Convention string

const (
	McgKgMin Convention = "mcg/kg/min"
	McgKgH   Convention = "mcg/kg/h"
	UnitsMin Convention = "units/min"
)

// Valid reports whether c is a known convention.
func (c Convention) Valid() bool {
	switch c {
	case McgKgMin, McgKgH, UnitsMin:
		return true
	}
	return false
}

// DefaultWeightKg is the weight assumed when a patient has none charted.
// Doses computed with it are flagged WeightDefaulted so the caller can warn:
// a wrong weight scales every weight-based dose proportionally.
const DefaultWeightKg = 70.0

// DoseInput describes a running infusion. Mass is mg (or units for drugs
// dosed in units) in Volume ml, running at Rate ml/h.
type DoseInput struct {
	Mass       string     `json:"mass"`
	Volume     string     `json:"volume"`
	Rate       string     `json:"rate"`
	WeightKg   float64    `json:"weightKg"`
	Convention Convention `json:"convention"`
}

// Dose is the result of a conversion. When Computable is false Value is zero
// and Reason says why.
type Dose struct {
	Value           float64    `json:"value"`
	Convention      Convention `json:"convention"`
	Computable      bool       `json:"computable"`
	WeightKg        float64    `json:"weightKg"`
	WeightDefaulted bool       `json:"weightDefaulted"`
	Reason          string     `json:"reason,omitempty"`
}

// String renders the dose with two decimals, or "n/a" when not computable.
func (d Dose) String() string {
	if !d.Computable {
		return "n/a"
	}
	return fmt.Sprintf("%.2f %s", d.Value, d.Convention)
}

func notComputable(c Convention, reason string) Dose {
	return Dose{Convention: c, Reason: reason}
}

// ConvertDose converts an infusion into the requested convention. It never
// returns NaN or Inf: bad input yields a Dose with Computable false.
func ConvertDose(in DoseInput) Dose {
	if !in.Convention.Valid() {
		return notComputable(in.Convention, "unknown convention")
	}
	mass, ok := parseAmount(in.Mass)
	if !ok {
		return notComputable(in.Convention, "invalid mass")
	}
	volume, ok := parseAmount(in.Volume)
	if !ok {
		return notComputable(in.Convention, "invalid volume")
	}
	if volume == 0 {
		return notComputable(in.Convention, "volume is zero")
	}
	rate, ok := parseAmount(in.Rate)
	if !ok {
		return notComputable(in.Convention, "invalid rate")
	}

	d := Dose{Convention: in.Convention, WeightKg: in.WeightKg}
	if in.Convention != UnitsMin && (in.WeightKg <= 0 || math.IsNaN(in.WeightKg) || math.IsInf(in.WeightKg, 0)) {
		d.WeightKg = DefaultWeightKg
		d.WeightDefaulted = true
	}

	concentration := mass / volume
	switch in.Convention {
	case McgKgMin:
		d.Value = rate * concentration * 1000 / (d.WeightKg * 60)
	case McgKgH:
		d.Value = rate * concentration * 1000 / d.WeightKg
	case UnitsMin:
		d.Value = rate * concentration / 60
	}
	if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return notComputable(in.Convention, "result out of range")
	}
	d.Computable = true
	return d
}

// parseAmount reads the first number of s, so "16mg" and "8,5 ml/h" parse.
func parseAmount(s string) (float64, bool) {
	v, ok := labs.ParseValue(s)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// drugConventions maps common continuous infusions to the unit they are
// titrated in. Keys are lower case without accents.
var drugConventions = map[string]Convention{
	"noradrenalina":   McgKgMin,
	"norepinefrina":   McgKgMin,
	"adrenalina":      McgKgMin,
	"epinefrina":      McgKgMin,
	"dobutamina":      McgKgMin,
	"dopamina":        McgKgMin,
	"nitroprussiato":  McgKgMin,
	"milrinona":       McgKgMin,
	"vasopressina":    UnitsMin,
	"fentanil":        McgKgH,
	"dexmedetomidina": McgKgH,
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e", "í", "i",
	"ó", "o", "ô", "o", "õ", "o", "ú", "u", "ç", "c",
)

// ConventionFor returns the dosing convention of a drug by name. The first
// word of the name is used, so "Noradrenalina 4mg/250ml" resolves.
func ConventionFor(drug string) (Convention, bool) {
	fields := strings.Fields(strings.ToLower(drug))
	if len(fields) == 0 {
		return "", false
	}
	c, ok := drugConventions[accentFolder.Replace(fields[0])]
	return c, ok
}
