package labs

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

// Column is one daily log in the matrix.
type Column struct {
	LogID uuid.UUID `json:"logId"`
	Date  string    `json:"date"`
}

// Cell is the value shown at a test/column intersection.
type Cell struct {
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange,omitempty"`
}

// RowCell is a cell together with its trend against the preceding column.
type RowCell struct {
	Column Column `json:"column"`
	Cell   *Cell  `json:"cell,omitempty"`
	Trend  Trend  `json:"trend"`
}

// Row is one test across every column.
type Row struct {
	TestName     string     `json:"testName"`
	Abbreviation string     `json:"abbreviation"`
	Reference    *Reference `json:"reference,omitempty"`
	Cells        []RowCell  `json:"cells"`
}

// Matrix is the test-by-date view of a patient's lab results. Columns follow
// ascending log date; logs sharing a date stay separate columns in input order.
type Matrix struct {
	testNames []string
	columns   []Column
	logs      []chart.DailyLog
}

// BuildMatrix pivots daily logs into a matrix. Rows are the mandatory tests
// followed by every other observed test in Portuguese alphabetical order.
func BuildMatrix(logs []chart.DailyLog) *Matrix {
	sorted := append([]chart.DailyLog(nil), logs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	m := &Matrix{
		testNames: MandatoryTests(),
		columns:   make([]Column, len(sorted)),
		logs:      sorted,
	}

	seen := make(map[string]bool, len(m.testNames))
	for _, name := range m.testNames {
		seen[name] = true
	}
	var extra []string
	for i, l := range sorted {
		m.columns[i] = Column{LogID: l.ID, Date: l.Date}
		for _, lr := range l.Labs {
			if lr.TestName == "" || seen[lr.TestName] {
				continue
			}
			seen[lr.TestName] = true
			extra = append(extra, lr.TestName)
		}
	}
	if len(extra) > 0 {
		collate.New(language.BrazilianPortuguese).SortStrings(extra)
		m.testNames = append(m.testNames, extra...)
	}
	return m
}

// TestNames returns the row labels in display order.
func (m *Matrix) TestNames() []string {
	return append([]string(nil), m.testNames...)
}

// Columns returns the columns in display order.
func (m *Matrix) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// Dates returns the column dates in display order.
func (m *Matrix) Dates() []string {
	dates := make([]string, len(m.columns))
	for i, c := range m.columns {
		dates[i] = c.Date
	}
	return dates
}

// Cell returns the value of testName in column col. When a log repeats a
// test name the first entry wins.
func (m *Matrix) Cell(testName string, col int) (Cell, bool) {
	if col < 0 || col >= len(m.logs) {
		return Cell{}, false
	}
	for _, lr := range m.logs[col].Labs {
		if lr.TestName == testName {
			return Cell{Value: lr.Value, Unit: lr.Unit, ReferenceRange: lr.ReferenceRange}, true
		}
	}
	return Cell{}, false
}

// CellValue looks a cell up by date, using the first column with that date.
func (m *Matrix) CellValue(testName, date string) (Cell, bool) {
	for i, c := range m.columns {
		if c.Date == date {
			return m.Cell(testName, i)
		}
	}
	return Cell{}, false
}

// Rows materializes every row. The trend of a cell compares it with the
// immediately preceding column only; a gap there means no previous value.
func (m *Matrix) Rows() []Row {
	rows := make([]Row, len(m.testNames))
	for i, name := range m.testNames {
		row := Row{
			TestName:     name,
			Abbreviation: Abbreviate(name),
			Cells:        make([]RowCell, len(m.columns)),
		}
		if ref, ok := Lookup(name); ok {
			row.Reference = &ref
		}

		var prev *Cell
		for j, col := range m.columns {
			rc := RowCell{Column: col, Trend: unknownTrend}
			if cell, ok := m.Cell(name, j); ok {
				c := cell
				rc.Cell = &c
				if prev != nil {
					rc.Trend = EvaluateTrend(name, c.Value, prev.Value)
				}
			}
			row.Cells[j] = rc
			prev = rc.Cell
		}
		rows[i] = row
	}
	return rows
}

// MarshalJSON renders the matrix with its rows expanded.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TestNames []string `json:"testNames"`
		Columns   []Column `json:"columns"`
		Rows      []Row    `json:"rows"`
	}{
		TestNames: m.testNames,
		Columns:   m.columns,
		Rows:      m.Rows(),
	})
}
