package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
	"github.com/cardioedad/cardioedad/internal/domain/labs"
)

// maxPendingConducts caps the to-do list printed per patient.
const maxPendingConducts = 3

// CensusEntry is one line of the shift handoff sheet.
type CensusEntry struct {
	PatientID       uuid.UUID `json:"patientId"`
	Bed             string    `json:"bed"`
	Name            string    `json:"name"`
	Age             int       `json:"age"`
	DIH             int       `json:"dih"`
	Hypothesis      string    `json:"hypothesis"`
	Respiratory     string    `json:"respiratory"`
	Vasoactive      string    `json:"vasoactive"`
	Device          string    `json:"device"`
	Labs            string    `json:"labs"`
	PendingConducts []string  `json:"pendingConducts"`
}

const censusPageSize = 200

// Census builds the handoff sheet of a unit's active patients, ordered by
// bed number.
func (s *Service) Census(ctx context.Context, unit string) ([]CensusEntry, error) {
	if !ValidUnit(unit) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}

	var patients []*Patient
	for offset := 0; ; offset += censusPageSize {
		page, total, err := s.patients.List(ctx, ListFilter{Unit: unit, Status: StatusActive}, censusPageSize, offset)
		if err != nil {
			return nil, err
		}
		patients = append(patients, page...)
		if len(page) == 0 || len(patients) >= total {
			break
		}
	}

	beds := collate.New(language.BrazilianPortuguese, collate.Numeric)
	entries := make([]CensusEntry, 0, len(patients))
	for _, p := range patients {
		logs, err := s.logs.ListByPatient(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, s.censusEntry(p, latestLog(logs)))
	}
	sortEntries(entries, beds)
	return entries, nil
}

func sortEntries(entries []CensusEntry, c *collate.Collator) {
	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Bed, entries[j].Bed) < 0
	})
}

func (s *Service) censusEntry(p *Patient, latest *chart.DailyLog) CensusEntry {
	e := CensusEntry{
		PatientID:       p.ID,
		Bed:             p.BedNumber,
		Name:            p.Name,
		Age:             p.Age,
		DIH:             p.DaysOfHospitalization(s.now()),
		Respiratory:     icu.RespiratorySummary(p.Ventilation),
		Vasoactive:      icu.FirstLine(p.VasoactiveDrugs),
		PendingConducts: []string{},
	}
	if len(p.DiagnosticHypotheses) > 0 {
		e.Hypothesis = p.DiagnosticHypotheses[0]
	}
	if len(p.Devices) > 0 {
		d := p.Devices[0]
		e.Device = strings.TrimSpace(fmt.Sprintf("%s (%s)", d.Name, d.InsertionDate))
	}
	if latest == nil {
		return e
	}
	e.Labs = labs.Summary(latest.Labs)
	for _, c := range latest.Conducts {
		if c.Verified {
			continue
		}
		e.PendingConducts = append(e.PendingConducts, c.Description)
		if len(e.PendingConducts) == maxPendingConducts {
			break
		}
	}
	return e
}

// latestLog returns the log with the greatest date, the last one on ties.
func latestLog(logs []chart.DailyLog) *chart.DailyLog {
	var latest *chart.DailyLog
	for i := range logs {
		if latest == nil || logs[i].Date >= latest.Date {
			latest = &logs[i]
		}
	}
	return latest
}
