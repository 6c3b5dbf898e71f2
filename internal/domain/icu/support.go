package icu

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

// Ventilation modes with special summaries.
const (
	ModeSpontaneous = "Espontânea"
	ModeCannula     = "Cateter/CNAF"
)

// RespiratorySummary is the one-line respiratory support shown on handoff
// sheets.
func RespiratorySummary(v *chart.Ventilation) string {
	if v == nil || v.Mode == "" || v.Mode == ModeSpontaneous {
		return "Ar Ambiente"
	}
	if v.Mode == ModeCannula {
		return fmt.Sprintf("%s %sL (Fi:%s%%)", v.Mode, v.Flow, v.FiO2)
	}
	return fmt.Sprintf("%s %s (Fi:%s%% P:%s)", v.Mode, v.SubMode, v.FiO2, v.PEEP)
}

const day = 24 * time.Hour

// DaysSince counts started days between from and now, rounding up. It is
// the DIH (days of hospitalization) figure when from is the admission date.
func DaysSince(from, now time.Time) int {
	d := now.Sub(from)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(float64(d) / float64(day)))
}

// ParseDate reads a YYYY-MM-DD date, also accepting full RFC 3339 timestamps.
// Use ParseDay where the stored form must stay sortable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := ParseDay(s); ok {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseDay accepts exactly YYYY-MM-DD, the key daily logs are ordered by.
func ParseDay(s string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DwellDays is how long a device has been in place, or -1 when its
// insertion date is unreadable.
func DwellDays(d chart.Device, now time.Time) int {
	t, ok := ParseDate(d.InsertionDate)
	if !ok {
		return -1
	}
	return DaysSince(t, now)
}

// FirstLine returns the first non-blank line of a free-text field.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
