// Package chart holds the clinical record types shared by the charting
// computations and the persistence layer.
package chart

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Care units a patient can be assigned to.
const (
	UnitICU     = "UTI"
	UnitWard    = "Enfermaria"
	UnitArchive = "Arquivo Morto"
)

// LabResult is one laboratory value recorded in a daily log. Value is kept as
// entered so ranges and comma decimals survive round trips.
type LabResult struct {
	TestName       string `json:"testName"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
}

// UnmarshalJSON accepts the value either as a JSON string or a JSON number.
func (r *LabResult) UnmarshalJSON(data []byte) error {
	type alias LabResult
	aux := struct {
		*alias
		Value json.RawMessage `json:"value"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.Value)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		r.Value = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		r.Value = s
	default:
		r.Value = string(raw)
	}
	return nil
}

// VitalSigns are stored as free text, the way they are charted at the bedside.
type VitalSigns struct {
	Temperature           string `json:"temperature"`
	HeartRate             string `json:"heartRate"`
	RespiratoryRate       string `json:"respiratoryRate"`
	BloodPressureSys      string `json:"bloodPressureSys"`
	BloodPressureDia      string `json:"bloodPressureDia"`
	OxygenSaturation      string `json:"oxygenSaturation"`
	CapillaryBloodGlucose string `json:"capillaryBloodGlucose"`
}

// Conduct is a pending or completed action item.
type Conduct struct {
	Description string `json:"description"`
	Verified    bool   `json:"verified"`
}

// FluidBalance is a day's intake and output in ml. Net is derived and is
// overwritten by Recompute on every write.
type FluidBalance struct {
	Intake float64 `json:"intake"`
	Output float64 `json:"output"`
	Net    float64 `json:"net"`
}

// Recompute sets Net from Intake and Output.
func (f *FluidBalance) Recompute() {
	f.Net = f.Intake - f.Output
}

// DailyLog is one clinical entry for a patient on a calendar date.
type DailyLog struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	PatientID     uuid.UUID     `db:"patient_id" json:"patient_id"`
	Date          string        `db:"date" json:"date"`
	VitalSigns    VitalSigns    `db:"vital_signs" json:"vitalSigns"`
	Notes         string        `db:"notes" json:"notes"`
	Prescriptions []string      `db:"prescriptions" json:"prescriptions"`
	Conducts      []Conduct     `db:"conducts" json:"conducts"`
	Labs          []LabResult   `db:"labs" json:"labs"`
	FluidBalance  *FluidBalance `db:"fluid_balance" json:"fluidBalance,omitempty"`
	Version       int           `db:"version" json:"version"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy of the log so callers can edit it without
// touching the original.
func (l DailyLog) Clone() DailyLog {
	out := l
	if l.Prescriptions != nil {
		out.Prescriptions = append([]string(nil), l.Prescriptions...)
	}
	if l.Conducts != nil {
		out.Conducts = append([]Conduct(nil), l.Conducts...)
	}
	if l.Labs != nil {
		out.Labs = append([]LabResult(nil), l.Labs...)
	}
	if l.FluidBalance != nil {
		fb := *l.FluidBalance
		out.FluidBalance = &fb
	}
	return out
}

// Normalize drops blank entries from the repeated fields and recomputes the
// fluid balance. keepBalance is false for patients outside the ICU.
func (l *DailyLog) Normalize(keepBalance bool) {
	prescriptions := l.Prescriptions[:0:0]
	for _, p := range l.Prescriptions {
		if strings.TrimSpace(p) != "" {
			prescriptions = append(prescriptions, p)
		}
	}
	l.Prescriptions = prescriptions

	conducts := l.Conducts[:0:0]
	for _, c := range l.Conducts {
		if strings.TrimSpace(c.Description) != "" {
			conducts = append(conducts, c)
		}
	}
	l.Conducts = conducts

	labs := l.Labs[:0:0]
	for _, lr := range l.Labs {
		if strings.TrimSpace(lr.Value) != "" {
			labs = append(labs, lr)
		}
	}
	l.Labs = labs

	if !keepBalance {
		l.FluidBalance = nil
		return
	}
	if l.FluidBalance != nil {
		l.FluidBalance.Recompute()
	}
}

// Ventilation describes the current respiratory support.
type Ventilation struct {
	Mode     string `json:"mode"`
	SubMode  string `json:"subMode,omitempty"`
	FiO2     string `json:"fio2"`
	PEEP     string `json:"peep"`
	Rate     string `json:"rate"`
	Volume   string `json:"volume"`
	Pressure string `json:"pressure"`
	Flow     string `json:"flow,omitempty"`
}

// Device is an invasive device (line, drain, catheter) with its insertion date.
type Device struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	InsertionDate string    `json:"insertionDate"`
}

// Attachment types.
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// Attachment is the metadata of an uploaded exam image or document. The
// bytes live in object storage under ObjectKey.
type Attachment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"type" json:"type"`
	ContentType string    `db:"content_type" json:"contentType"`
	Size        int64     `db:"size" json:"size"`
	ObjectKey   string    `db:"object_key" json:"-"`
	Hash        string    `db:"hash" json:"hash"`
	URL         string    `db:"-" json:"url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
