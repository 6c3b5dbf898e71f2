// Package labs evaluates laboratory trends against clinical reference ranges
// and pivots per-day results into a test-by-date matrix.
package labs

import "unicode/utf8"

// Reference is the normal band of a lab test. HighIsBad and LowIsBad mark
// one-sided tests; when neither is set both bounds matter.
type Reference struct {
	TestName     string  `json:"testName"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	HighIsBad    bool    `json:"highIsBad,omitempty"`
	LowIsBad     bool    `json:"lowIsBad,omitempty"`
	Unit         string  `json:"unit"`
	Abbreviation string  `json:"abbreviation"`
}

// Contains reports whether v lies inside [Min, Max].
func (r Reference) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// mandatory is the fixed row order of the lab matrix: electrolytes, renal,
// hematology, inflammatory, coagulation, blood gas.
var mandatory = []Reference{
	{TestName: "Sódio", Min: 135, Max: 145, Unit: "mEq/L", Abbreviation: "Na+"},
	{TestName: "Potássio", Min: 3.5, Max: 5.0, Unit: "mEq/L", Abbreviation: "K+"},
	{TestName: "Ureia", Min: 15, Max: 45, HighIsBad: true, Unit: "mg/dL", Abbreviation: "Ur"},
	{TestName: "Creatinina", Min: 0.6, Max: 1.2, HighIsBad: true, Unit: "mg/dL", Abbreviation: "Cr"},
	{TestName: "Hemoglobina", Min: 12, Max: 16, LowIsBad: true, Unit: "g/dL", Abbreviation: "Hb"},
	{TestName: "Hematócrito", Min: 36, Max: 48, LowIsBad: true, Unit: "%", Abbreviation: "Ht"},
	{TestName: "Leucócitos", Min: 4000, Max: 11000, Unit: "/mm³", Abbreviation: "Leuco"},
	{TestName: "Plaquetas", Min: 150000, Max: 450000, LowIsBad: true, Unit: "/mm³", Abbreviation: "Plq"},
	{TestName: "PCR", Min: 0, Max: 5, HighIsBad: true, Unit: "mg/L", Abbreviation: "PCR"},
	{TestName: "Lactato", Min: 0, Max: 2.0, HighIsBad: true, Unit: "mmol/L", Abbreviation: "Lac"},
	{TestName: "aPTT", Min: 25, Max: 35, Unit: "s", Abbreviation: "aPTT"},
	{TestName: "INR", Min: 0.8, Max: 1.2, HighIsBad: true, Abbreviation: "INR"},
	{TestName: "pH", Min: 7.35, Max: 7.45, Abbreviation: "pH"},
	{TestName: "pO2", Min: 80, Max: 100, LowIsBad: true, Unit: "mmHg", Abbreviation: "pO2"},
	{TestName: "pCO2", Min: 35, Max: 45, Unit: "mmHg", Abbreviation: "pCO2"},
	{TestName: "Bicarbonato", Min: 22, Max: 26, Unit: "mEq/L", Abbreviation: "BIC"},
	{TestName: "SatO2", Min: 95, Max: 100, LowIsBad: true, Unit: "%", Abbreviation: "Sat"},
}

// Tests charted often enough to carry an abbreviation but without a range.
var extraAbbreviations = map[string]string{
	"Troponina":      "Trop",
	"Dímero-D":       "DD",
	"Magnésio":       "Mg",
	"Cálcio":         "Ca",
	"Fósforo":        "P",
	"Glicemia":       "Glic",
	"Procalcitonina": "Procal",
}

var references = func() map[string]Reference {
	m := make(map[string]Reference, len(mandatory))
	for _, r := range mandatory {
		m[r.TestName] = r
	}
	return m
}()

// Lookup returns the reference entry for a test name.
func Lookup(testName string) (Reference, bool) {
	r, ok := references[testName]
	return r, ok
}

// MandatoryTests returns the mandatory test names in display order.
func MandatoryTests() []string {
	names := make([]string, len(mandatory))
	for i, r := range mandatory {
		names[i] = r.TestName
	}
	return names
}

// References returns a copy of the reference table in display order.
func References() []Reference {
	return append([]Reference(nil), mandatory...)
}

// Abbreviate returns the short label used in compact listings. Unknown tests
// are cut to their first four characters.
func Abbreviate(testName string) string {
	if r, ok := references[testName]; ok {
		return r.Abbreviation
	}
	if a, ok := extraAbbreviations[testName]; ok {
		return a
	}
	if utf8.RuneCountInString(testName) <= 4 {
		return testName
	}
	return string([]rune(testName)[:4])
}
