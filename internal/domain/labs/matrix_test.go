package labs

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

func logOn(date string, labs ...chart.LabResult) chart.DailyLog {
	return chart.DailyLog{ID: uuid.New(), Date: date, Labs: labs}
}

func lab(name, value, unit string) chart.LabResult {
	return chart.LabResult{TestName: name, Value: value, Unit: unit}
}

func TestBuildMatrix_Empty(t *testing.T) {
	m := BuildMatrix(nil)

	assert.Equal(t, MandatoryTests(), m.TestNames())
	assert.Empty(t, m.Dates())
	for _, name := range m.TestNames() {
		_, ok := m.Cell(name, 0)
		assert.False(t, ok)
		_, ok = m.CellValue(name, "2024-01-01")
		assert.False(t, ok)
	}
	rows := m.Rows()
	require.Len(t, rows, len(MandatoryTests()))
	assert.Empty(t, rows[0].Cells)
}

func TestBuildMatrix_ColumnsFollowDate(t *testing.T) {
	logs := []chart.DailyLog{
		logOn("2024-03-03"),
		logOn("2024-03-01"),
		logOn("2024-03-02"),
	}
	m := BuildMatrix(logs)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, m.Dates())

	reversed := []chart.DailyLog{logs[2], logs[1], logs[0]}
	assert.Equal(t, m.Dates(), BuildMatrix(reversed).Dates())

	// input untouched
	assert.Equal(t, "2024-03-03", logs[0].Date)
}

func TestBuildMatrix_DuplicateDatesStaySeparate(t *testing.T) {
	first := logOn("2024-03-01", lab("Sódio", "130", "mEq/L"))
	second := logOn("2024-03-01", lab("Sódio", "135", "mEq/L"))
	m := BuildMatrix([]chart.DailyLog{first, second})

	cols := m.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, first.ID, cols[0].LogID)
	assert.Equal(t, second.ID, cols[1].LogID)

	cell, ok := m.CellValue("Sódio", "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, "130", cell.Value)
}

func TestBuildMatrix_ExtraRowsAlphabetical(t *testing.T) {
	logs := []chart.DailyLog{
		logOn("2024-03-01", lab("Troponina", "0.1", "ng/mL"), lab("Sódio", "140", "mEq/L")),
		logOn("2024-03-02", lab("Albumina", "3.1", "g/dL"), lab("Ácido úrico", "5", "mg/dL")),
		logOn("2024-03-03", lab("Cálcio", "8.9", "mg/dL"), lab("Troponina", "0.2", "ng/mL")),
	}
	names := BuildMatrix(logs).TestNames()

	mandatory := MandatoryTests()
	assert.Equal(t, mandatory, names[:len(mandatory)])
	assert.Equal(t, []string{"Ácido úrico", "Albumina", "Cálcio", "Troponina"}, names[len(mandatory):])
}

func TestBuildMatrix_RowPerDistinctTest(t *testing.T) {
	logs := []chart.DailyLog{
		logOn("2024-03-01", lab("Troponina", "0.1", ""), lab("Sódio", "140", "")),
		logOn("2024-03-02", lab("Troponina", "0.3", "")),
	}
	m := BuildMatrix(logs)
	assert.Len(t, m.TestNames(), len(MandatoryTests())+1)
	assert.Len(t, m.Rows(), len(MandatoryTests())+1)
}

func TestMatrix_CellFirstMatchWins(t *testing.T) {
	m := BuildMatrix([]chart.DailyLog{
		logOn("2024-03-01", lab("Potássio", "3.9", "mEq/L"), lab("Potássio", "5.9", "mEq/L")),
	})
	cell, ok := m.Cell("Potássio", 0)
	require.True(t, ok)
	assert.Equal(t, Cell{Value: "3.9", Unit: "mEq/L"}, cell)

	_, ok = m.Cell("Potássio", 1)
	assert.False(t, ok)
	_, ok = m.Cell("Potássio", -1)
	assert.False(t, ok)
}

func TestMatrix_RowsTrendUsesAdjacentColumnOnly(t *testing.T) {
	m := BuildMatrix([]chart.DailyLog{
		logOn("2024-03-01", lab("Creatinina", "1.0", "mg/dL")),
		logOn("2024-03-02", lab("Creatinina", "1.8", "mg/dL")),
		logOn("2024-03-03"),
		logOn("2024-03-04", lab("Creatinina", "2.5", "mg/dL")),
	})

	var row Row
	for _, r := range m.Rows() {
		if r.TestName == "Creatinina" {
			row = r
		}
	}
	require.Len(t, row.Cells, 4)
	assert.Equal(t, "Cr", row.Abbreviation)
	require.NotNil(t, row.Reference)

	assert.Equal(t, DirectionUnknown, row.Cells[0].Trend.Direction)
	assert.Equal(t, Trend{DirectionUp, Worsening}, row.Cells[1].Trend)
	assert.Nil(t, row.Cells[2].Cell)
	assert.Equal(t, DirectionUnknown, row.Cells[2].Trend.Direction)
	require.NotNil(t, row.Cells[3].Cell)
	assert.Equal(t, DirectionUnknown, row.Cells[3].Trend.Direction)
}

func TestMatrix_MarshalJSON(t *testing.T) {
	m := BuildMatrix([]chart.DailyLog{logOn("2024-03-01", lab("Sódio", "140", "mEq/L"))})
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out struct {
		TestNames []string `json:"testNames"`
		Columns   []Column `json:"columns"`
		Rows      []Row    `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MandatoryTests(), out.TestNames)
	require.Len(t, out.Columns, 1)
	assert.Equal(t, "Sódio", out.Rows[0].TestName)
	require.NotNil(t, out.Rows[0].Cells[0].Cell)
	assert.Equal(t, "140", out.Rows[0].Cells[0].Cell.Value)
}
