package labs

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Direction of change between two consecutive values.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionFlat    Direction = "flat"
	DirectionUnknown Direction = "unknown"
)

// Significance is the clinical reading of a change.
type Significance string

const (
	Improving Significance = "improving"
	Worsening Significance = "worsening"
	Neutral   Significance = "neutral"
)

// Trend pairs a direction with its clinical significance.
type Trend struct {
	Direction    Direction    `json:"direction"`
	Significance Significance `json:"significance"`
}

// Epsilon is the smallest difference treated as a change.
const Epsilon = 0.01

var numberToken = regexp.MustCompile(`-?(?:\d+(?:\.\d+)?|\.\d+)`)

// ParseValue reads the first number in a charted value. Comma decimal
// separators are accepted.
func ParseValue(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var unknownTrend = Trend{Direction: DirectionUnknown, Significance: Neutral}

// EvaluateTrend compares the current value of a test with the previous one.
// Unparsable or missing values yield an unknown, neutral trend.
func EvaluateTrend(testName, current, previous string) Trend {
	if strings.TrimSpace(previous) == "" {
		return unknownTrend
	}
	curr, ok := ParseValue(current)
	if !ok {
		return unknownTrend
	}
	prev, ok := ParseValue(previous)
	if !ok {
		return unknownTrend
	}

	if math.Abs(curr-prev) < Epsilon {
		return Trend{Direction: DirectionFlat, Significance: Neutral}
	}

	dir := DirectionDown
	if curr > prev {
		dir = DirectionUp
	}

	ref, ok := Lookup(testName)
	if !ok {
		return Trend{Direction: dir, Significance: Neutral}
	}
	return Trend{Direction: dir, Significance: significance(ref, dir, curr, prev)}
}

func significance(ref Reference, dir Direction, curr, prev float64) Significance {
	switch {
	case ref.HighIsBad:
		if dir == DirectionUp {
			return Worsening
		}
		return Improving
	case ref.LowIsBad:
		if dir == DirectionUp {
			return Improving
		}
		return Worsening
	}
	if returningToNormal(ref, curr, prev) {
		return Improving
	}
	return Worsening
}

// returningToNormal is true when curr is inside the band, or when curr stayed
// on the same side as prev but moved toward the band without crossing it.
func returningToNormal(ref Reference, curr, prev float64) bool {
	if ref.Contains(curr) {
		return true
	}
	if prev < ref.Min && curr < ref.Min && curr > prev {
		return true
	}
	if prev > ref.Max && curr > ref.Max && curr < prev {
		return true
	}
	return false
}
