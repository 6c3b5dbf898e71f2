package icu

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity grades a charted temperature.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

func (s Severity) rank() int {
	switch s {
	case SeverityDanger:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

var tempToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ClassifyTemperature grades every number found in text and returns the
// worst grade. Below 35 or above 37.8 is danger; 37 to 37.7 is warning.
func ClassifyTemperature(text string) Severity {
	worst := SeverityNormal
	for _, tok := range tempToken.FindAllString(strings.ReplaceAll(text, ",", "."), -1) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		if s := classify(v); s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

func classify(v float64) Severity {
	switch {
	case v < 35 || v > 37.8:
		return SeverityDanger
	case v >= 37 && v <= 37.7:
		return SeverityWarning
	}
	return SeverityNormal
}
