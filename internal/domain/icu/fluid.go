// Package icu derives the numbers charted for intensive care patients: fluid
// balance, infusion doses, temperature severity and support summaries.
package icu

import "github.com/cardioedad/cardioedad/internal/domain/chart"

// NetBalance is intake minus output.
func NetBalance(intake, output float64) float64 {
	return intake - output
}

// NewFluidBalance builds a balance with its net already computed.
func NewFluidBalance(intake, output float64) chart.FluidBalance {
	return chart.FluidBalance{Intake: intake, Output: output, Net: NetBalance(intake, output)}
}

// CumulativeFluidBalance sums intake minus output of every log that has a
// balance. The stored Net is ignored. Logs without a balance contribute
// nothing.
func CumulativeFluidBalance(logs []chart.DailyLog) float64 {
	var total float64
	for _, l := range logs {
		if fb := l.FluidBalance; fb != nil {
			total += NetBalance(fb.Intake, fb.Output)
		}
	}
	return total
}

// BalanceDays counts the logs carrying a fluid balance.
func BalanceDays(logs []chart.DailyLog) int {
	n := 0
	for _, l := range logs {
		if l.FluidBalance != nil {
			n++
		}
	}
	return n
}
