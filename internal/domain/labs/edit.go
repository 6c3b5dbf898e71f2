package labs

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

// ErrLogNotFound is returned when the edited log is not among the given logs.
var ErrLogNotFound = errors.New("daily log not found")

// SetValue edits one lab cell and returns the updated copy of the log.
// An empty value removes the result. A new result inherits unit and reference
// range from the latest other log carrying the same test, preferring logs
// dated on or before the edited one. logs is not modified.
func SetValue(logs []chart.DailyLog, logID uuid.UUID, testName, value, unit string) (chart.DailyLog, error) {
	idx := -1
	for i := range logs {
		if logs[i].ID == logID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chart.DailyLog{}, ErrLogNotFound
	}

	out := logs[idx].Clone()
	value = strings.TrimSpace(value)
	unit = strings.TrimSpace(unit)

	pos := -1
	for i, lr := range out.Labs {
		if lr.TestName == testName {
			pos = i
			break
		}
	}

	switch {
	case pos >= 0 && value == "":
		out.Labs = append(out.Labs[:pos], out.Labs[pos+1:]...)
	case pos >= 0:
		out.Labs[pos].Value = value
		if unit != "" {
			out.Labs[pos].Unit = unit
		}
	case value != "":
		lr := chart.LabResult{TestName: testName, Value: value}
		if prior, ok := priorResult(logs, idx, testName); ok {
			lr.Unit = prior.Unit
			lr.ReferenceRange = prior.ReferenceRange
		}
		if unit != "" {
			lr.Unit = unit
		}
		out.Labs = append(out.Labs, lr)
	}
	return out, nil
}

// priorResult finds the most recent occurrence of testName outside logs[skip].
func priorResult(logs []chart.DailyLog, skip int, testName string) (chart.LabResult, bool) {
	target := logs[skip].Date

	type hit struct {
		date  string
		order int
		lr    chart.LabResult
	}
	var before, after []hit
	for i, l := range logs {
		if i == skip {
			continue
		}
		for _, lr := range l.Labs {
			if lr.TestName != testName {
				continue
			}
			h := hit{date: l.Date, order: i, lr: lr}
			if l.Date <= target {
				before = append(before, h)
			} else {
				after = append(after, h)
			}
			break
		}
	}

	latest := func(hits []hit) chart.LabResult {
		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].date != hits[j].date {
				return hits[i].date < hits[j].date
			}
			return hits[i].order < hits[j].order
		})
		return hits[len(hits)-1].lr
	}
	switch {
	case len(before) > 0:
		return latest(before), true
	case len(after) > 0:
		return latest(after), true
	}
	return chart.LabResult{}, false
}

// summaryPriority orders the compact lab listing used on shift handoff sheets.
var summaryPriority = []string{
	"Hemoglobina", "Leucócitos", "Plaquetas", "Creatinina", "Ureia",
	"Sódio", "Potássio", "PCR", "Lactato",
}

// Summary renders results as "Abbr:value" pairs separated by spaces, priority
// tests first and the rest in input order.
func Summary(results []chart.LabResult) string {
	rank := func(name string) int {
		for i, p := range summaryPriority {
			if p == name {
				return i
			}
		}
		return len(summaryPriority)
	}
	sorted := append([]chart.LabResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i].TestName) < rank(sorted[j].TestName)
	})

	parts := make([]string, 0, len(sorted))
	for _, lr := range sorted {
		if strings.TrimSpace(lr.Value) == "" {
			continue
		}
		parts = append(parts, Abbreviate(lr.TestName)+":"+lr.Value)
	}
	return strings.Join(parts, " ")
}
