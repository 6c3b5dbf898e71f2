package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
)

var (
	ErrNotFound    = errors.New("patient not found")
	ErrConflict    = errors.New("record was modified by someone else, reload and retry")
	ErrInvalidUnit = errors.New("invalid unit")
)

// Patient statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDeleted   = "deleted"
)

// TabFinished lists discharged patients regardless of unit.
const TabFinished = "Finalizados"

type Patient struct {
	ID                   uuid.UUID          `db:"id" json:"id"`
	Name                 string             `db:"name" json:"name"`
	Age                  int                `db:"age" json:"age"`
	Gender               string             `db:"gender" json:"gender"`
	EstimatedWeight      *float64           `db:"estimated_weight" json:"estimatedWeight,omitempty"`
	BedNumber            string             `db:"bed_number" json:"bedNumber"`
	Unit                 string             `db:"unit" json:"unit"`
	Status               string             `db:"status" json:"status"`
	AdmissionDate        string             `db:"admission_date" json:"admissionDate"`
	AdmissionHistory     string             `db:"admission_history" json:"admissionHistory"`
	PersonalHistory      []string           `db:"personal_history" json:"personalHistory"`
	HomeMedications      []string           `db:"home_medications" json:"homeMedications"`
	MedicalPrescription  string             `db:"medical_prescription" json:"medicalPrescription"`
	VasoactiveDrugs      string             `db:"vasoactive_drugs" json:"vasoactiveDrugs"`
	SedationAnalgesia    string             `db:"sedation_analgesia" json:"sedationAnalgesia"`
	Devices              []chart.Device     `db:"devices" json:"devices"`
	Ventilation          *chart.Ventilation `db:"ventilation" json:"ventilation,omitempty"`
	DiagnosticHypotheses []string           `db:"diagnostic_hypotheses" json:"diagnosticHypotheses"`
	DailyLogs            []chart.DailyLog   `db:"-" json:"dailyLogs,omitempty"`
	Attachments          []chart.Attachment `db:"-" json:"attachments,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// InICU reports whether the patient is charted with ICU fields (fluid
// balance, ventilation, vasoactive drugs).
func (p *Patient) InICU() bool {
	return p.Unit == chart.UnitICU
}

// DaysOfHospitalization is the DIH figure, or -1 when the admission date is
// missing or unreadable.
func (p *Patient) DaysOfHospitalization(now time.Time) int {
	t, ok := icu.ParseDate(p.AdmissionDate)
	if !ok {
		return -1
	}
	return icu.DaysSince(t, now)
}

// ValidUnit reports whether unit is one of the care units.
func ValidUnit(unit string) bool {
	switch unit {
	case chart.UnitICU, chart.UnitWard, chart.UnitArchive:
		return true
	}
	return false
}

// Update is a partial patient edit. Nil fields are left unchanged. Unit and
// status change only through Transfer, Discharge and Delete.
type Update struct {
	Name                 *string            `json:"name"`
	Age                  *int               `json:"age"`
	Gender               *string            `json:"gender"`
	EstimatedWeight      *float64           `json:"estimatedWeight"`
	BedNumber            *string            `json:"bedNumber"`
	AdmissionDate        *string            `json:"admissionDate"`
	AdmissionHistory     *string            `json:"admissionHistory"`
	PersonalHistory      *[]string          `json:"personalHistory"`
	HomeMedications      *[]string          `json:"homeMedications"`
	MedicalPrescription  *string            `json:"medicalPrescription"`
	VasoactiveDrugs      *string            `json:"vasoactiveDrugs"`
	SedationAnalgesia    *string            `json:"sedationAnalgesia"`
	Ventilation          *chart.Ventilation `json:"ventilation"`
	DiagnosticHypotheses *[]string          `json:"diagnosticHypotheses"`
}

func (u *Update) apply(p *Patient) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.EstimatedWeight != nil {
		w := *u.EstimatedWeight
		p.EstimatedWeight = &w
	}
	if u.BedNumber != nil {
		p.BedNumber = *u.BedNumber
	}
	if u.AdmissionDate != nil {
		p.AdmissionDate = *u.AdmissionDate
	}
	if u.AdmissionHistory != nil {
		p.AdmissionHistory = *u.AdmissionHistory
	}
	if u.PersonalHistory != nil {
		p.PersonalHistory = *u.PersonalHistory
	}
	if u.HomeMedications != nil {
		p.HomeMedications = *u.HomeMedications
	}
	if u.MedicalPrescription != nil {
		p.MedicalPrescription = *u.MedicalPrescription
	}
	if u.VasoactiveDrugs != nil {
		p.VasoactiveDrugs = *u.VasoactiveDrugs
	}
	if u.SedationAnalgesia != nil {
		p.SedationAnalgesia = *u.SedationAnalgesia
	}
	if u.Ventilation != nil {
		v := *u.Ventilation
		p.Ventilation = &v
	}
	if u.DiagnosticHypotheses != nil {
		p.DiagnosticHypotheses = *u.DiagnosticHypotheses
	}
}

// DeviceView is a device with its dwell time in days (-1 when the insertion
// date is unreadable).
type DeviceView struct {
	chart.Device
	Days int `json:"days"`
}

// FluidSummary is the balance read model of a patient.
type FluidSummary struct {
	Cumulative float64      `json:"cumulative"`
	Days       int          `json:"days"`
	Daily      []DailyFluid `json:"daily"`
}

type DailyFluid struct {
	LogID uuid.UUID `json:"logId"`
	Date  string    `json:"date"`
	chart.FluidBalance
}

// TemperatureFlag grades the charted temperature of one log.
type TemperatureFlag struct {
	LogID       uuid.UUID    `json:"logId"`
	Date        string       `json:"date"`
	Temperature string       `json:"temperature"`
	Severity    icu.Severity `json:"severity"`
}
