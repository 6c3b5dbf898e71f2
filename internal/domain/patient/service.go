package patient

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
	"github.com/cardioedad/cardioedad/internal/domain/labs"
	"github.com/cardioedad/cardioedad/internal/domain/prescription"
	"github.com/cardioedad/cardioedad/internal/platform/live"
)

// Publisher is told about every committed chart change.
type Publisher interface {
	Publish(ctx context.Context, e live.Event) error
}

// TxFunc runs fn inside a transaction. The default runs fn directly.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	patients    PatientRepository
	logs        DailyLogRepository
	attachments AttachmentStore
	events      Publisher
	tx          TxFunc
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(patients PatientRepository, logs DailyLogRepository, logger zerolog.Logger) *Service {
	return &Service{
		patients: patients,
		logs:     logs,
		tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		logger: logger,
		now:    time.Now,
	}
}

// SetAttachmentStore wires attachment listing and purge.
func (s *Service) SetAttachmentStore(a AttachmentStore) {
	s.attachments = a
}

// SetPublisher wires chart change notifications.
func (s *Service) SetPublisher(p Publisher) {
	s.events = p
}

// publish is best effort: a failed notification never fails the write.
func (s *Service) publish(ctx context.Context, typ string, p *Patient, logID *uuid.UUID) {
	if s.events == nil {
		return
	}
	e := live.Event{Type: typ, PatientID: p.ID, Unit: p.Unit, LogID: logID}
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("type", typ).Str("patient_id", p.ID.String()).Msg("publish chart event")
	}
}

// SetTx makes multi-step writes transactional.
func (s *Service) SetTx(tx TxFunc) {
	s.tx = tx
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.Unit == "" {
		p.Unit = chart.UnitICU
	}
	if !ValidUnit(p.Unit) {
		return fmt.Errorf("%w: %q", ErrInvalidUnit, p.Unit)
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	for i := range p.Devices {
		if p.Devices[i].ID == uuid.Nil {
			p.Devices[i].ID = uuid.New()
		}
	}
	p.Status = StatusActive
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.publish(ctx, live.PatientCreated, p, nil)
	return nil
}

func validatePatient(p *Patient) error {
	if p.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	if p.EstimatedWeight != nil && *p.EstimatedWeight < 0 {
		return fmt.Errorf("estimatedWeight must not be negative")
	}
	if p.AdmissionDate != "" {
		if _, ok := icu.ParseDate(p.AdmissionDate); !ok {
			return fmt.Errorf("admissionDate must be YYYY-MM-DD, got %q", p.AdmissionDate)
		}
	}
	return nil
}

// getLive loads a patient that has not been soft deleted.
func (s *Service) getLive(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return notDeleted(s.patients.GetByID(ctx, id))
}

// lockLive is getLive taking the row lock, for read-modify-write inside s.tx.
func (s *Service) lockLive(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return notDeleted(s.patients.GetForUpdate(ctx, id))
}

func notDeleted(p *Patient, err error) (*Patient, error) {
	if err != nil {
		return nil, err
	}
	if p.Status == StatusDeleted {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetPatient returns the patient with its logs and attachments.
func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DailyLogs, err = s.logs.ListByPatient(ctx, id); err != nil {
		return nil, err
	}
	if s.attachments != nil {
		if p.Attachments, err = s.attachments.ListByPatient(ctx, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Exists reports whether a live patient with id exists.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.getLive(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListPatients lists a tab: a unit name lists its active patients,
// TabFinished lists discharged ones and "" lists every live patient.
func (s *Service) ListPatients(ctx context.Context, tab string, limit, offset int) ([]*Patient, int, error) {
	var f ListFilter
	switch {
	case tab == "":
	case tab == TabFinished:
		f.Status = StatusCompleted
	case ValidUnit(tab):
		f.Unit = tab
		f.Status = StatusActive
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidUnit, tab)
	}
	return s.patients.List(ctx, f, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, u *Update) (*Patient, error) {
	return s.mutate(ctx, id, func(p *Patient) error {
		u.apply(p)
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("name is required")
		}
		return validatePatient(p)
	})
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(p *Patient) error) (*Patient, error) {
	var out *Patient
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.lockLive(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	typ := live.PatientUpdated
	if out.Status == StatusDeleted {
		typ = live.PatientDeleted
	}
	s.publish(ctx, typ, out, nil)
	return out, nil
}

// DeletePatient hides the patient from every listing. Logs and attachments
// are kept until PurgePatient.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	_, err := s.mutate(ctx, id, func(p *Patient) error {
		p.Status = StatusDeleted
		return nil
	})
	return err
}

// PurgePatient removes the patient and everything charted for them.
func (s *Service) PurgePatient(ctx context.Context, id uuid.UUID) error {
	var purged *Patient
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		purged = p
		if s.attachments != nil {
			if err := s.attachments.DeleteByPatient(ctx, id); err != nil {
				return fmt.Errorf("purge attachments: %w", err)
			}
		}
		if err := s.logs.DeleteByPatient(ctx, id); err != nil {
			return err
		}
		return s.patients.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, live.PatientDeleted, purged, nil)
	return nil
}

func (s *Service) DischargePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.mutate(ctx, id, func(p *Patient) error {
		p.Status = StatusCompleted
		return nil
	})
}

// TransferPatient moves the patient to another unit. A discharged patient
// moved back into a care unit becomes active again.
func (s *Service) TransferPatient(ctx context.Context, id uuid.UUID, unit string) (*Patient, error) {
	if !ValidUnit(unit) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	return s.mutate(ctx, id, func(p *Patient) error {
		p.Unit = unit
		if unit != chart.UnitArchive && p.Status == StatusCompleted {
			p.Status = StatusActive
		}
		return nil
	})
}

// -- Devices --

func (s *Service) ListDevices(ctx context.Context, id uuid.UUID) ([]DeviceView, error) {
	p, err := s.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]DeviceView, 0, len(p.Devices))
	for _, d := range p.Devices {
		views = append(views, DeviceView{Device: d, Days: icu.DwellDays(d, now)})
	}
	return views, nil
}

func (s *Service) AddDevice(ctx context.Context, id uuid.UUID, d chart.Device) (*chart.Device, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if d.InsertionDate == "" {
		d.InsertionDate = s.now().Format(time.DateOnly)
	} else if _, ok := icu.ParseDate(d.InsertionDate); !ok {
		return nil, fmt.Errorf("insertionDate must be YYYY-MM-DD, got %q", d.InsertionDate)
	}
	d.ID = uuid.New()
	_, err := s.mutate(ctx, id, func(p *Patient) error {
		p.Devices = append(p.Devices, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) RemoveDevice(ctx context.Context, id, deviceID uuid.UUID) error {
	_, err := s.mutate(ctx, id, func(p *Patient) error {
		for i, d := range p.Devices {
			if d.ID == deviceID {
				p.Devices = append(p.Devices[:i:i], p.Devices[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("device not found: %w", ErrNotFound)
	})
	return err
}

// TogglePrescriptionLine strikes or restores one line of the current
// medical prescription.
func (s *Service) TogglePrescriptionLine(ctx context.Context, id uuid.UUID, index int) (*Patient, error) {
	return s.mutate(ctx, id, func(p *Patient) error {
		text, err := prescription.Toggle(p.MedicalPrescription, index)
		if err != nil {
			return err
		}
		p.MedicalPrescription = text
		return nil
	})
}

// -- Daily logs --

// SaveLog writes the patient's entry for l.Date, replacing any existing
// entry for that day.
func (s *Service) SaveLog(ctx context.Context, patientID uuid.UUID, l *chart.DailyLog) error {
	if _, ok := icu.ParseDay(l.Date); !ok {
		return fmt.Errorf("date must be YYYY-MM-DD, got %q", l.Date)
	}
	p, err := s.getLive(ctx, patientID)
	if err != nil {
		return err
	}
	l.PatientID = patientID
	l.Normalize(p.InICU())
	if err := s.logs.Upsert(ctx, l); err != nil {
		return err
	}
	s.publish(ctx, live.LogSaved, p, &l.ID)
	return nil
}

// UpdateLog rewrites an existing log. l.Version must match the stored
// version or ErrConflict is returned.
func (s *Service) UpdateLog(ctx context.Context, patientID uuid.UUID, l *chart.DailyLog) error {
	if _, ok := icu.ParseDay(l.Date); !ok {
		return fmt.Errorf("date must be YYYY-MM-DD, got %q", l.Date)
	}
	p, err := s.getLive(ctx, patientID)
	if err != nil {
		return err
	}
	existing, err := s.logOf(ctx, patientID, l.ID)
	if err != nil {
		return err
	}
	l.PatientID = patientID
	l.CreatedAt = existing.CreatedAt
	l.Normalize(p.InICU())
	if err := s.logs.Update(ctx, l); err != nil {
		return err
	}
	s.publish(ctx, live.LogSaved, p, &l.ID)
	return nil
}

func (s *Service) logOf(ctx context.Context, patientID, logID uuid.UUID) (*chart.DailyLog, error) {
	l, err := s.logs.GetByID(ctx, logID)
	if errors.Is(err, ErrNotFound) {
		return nil, labs.ErrLogNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.PatientID != patientID {
		return nil, labs.ErrLogNotFound
	}
	return l, nil
}

func (s *Service) DeleteLog(ctx context.Context, patientID, logID uuid.UUID) error {
	p, err := s.getLive(ctx, patientID)
	if err != nil {
		return err
	}
	if _, err := s.logOf(ctx, patientID, logID); err != nil {
		return err
	}
	if err := s.logs.Delete(ctx, logID); err != nil {
		return err
	}
	s.publish(ctx, live.LogDeleted, p, &logID)
	return nil
}

// SetLabValue edits one cell of the lab matrix. An empty value removes the
// result.
func (s *Service) SetLabValue(ctx context.Context, patientID, logID uuid.UUID, testName, value, unit string) (*chart.DailyLog, error) {
	if strings.TrimSpace(testName) == "" {
		return nil, fmt.Errorf("testName is required")
	}
	var out chart.DailyLog
	var owner *Patient
	changed := false
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.getLive(ctx, patientID)
		if err != nil {
			return err
		}
		owner = p
		logs, err := s.logs.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		out, err = labs.SetValue(logs, logID, testName, value, unit)
		if err != nil {
			return err
		}
		for _, l := range logs {
			if l.ID == logID && slices.Equal(l.Labs, out.Labs) {
				return nil
			}
		}
		changed = true
		out.Normalize(p.InICU())
		return s.logs.Update(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, live.LogSaved, owner, &out.ID)
	}
	return &out, nil
}

// ToggleConduct flips the verified flag of one conduct.
func (s *Service) ToggleConduct(ctx context.Context, patientID, logID uuid.UUID, index int) (*chart.DailyLog, error) {
	var out *chart.DailyLog
	var owner *Patient
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.getLive(ctx, patientID)
		if err != nil {
			return err
		}
		owner = p
		l, err := s.logOf(ctx, patientID, logID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(l.Conducts) {
			return fmt.Errorf("conduct index %d out of range", index)
		}
		l.Conducts[index].Verified = !l.Conducts[index].Verified
		if err := s.logs.Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, live.LogSaved, owner, &out.ID)
	return out, nil
}

// -- Read models --

func (s *Service) liveLogs(ctx context.Context, patientID uuid.UUID) (*Patient, []chart.DailyLog, error) {
	p, err := s.getLive(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	logs, err := s.logs.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	return p, logs, nil
}

func (s *Service) LabMatrix(ctx context.Context, patientID uuid.UUID) (*labs.Matrix, error) {
	_, logs, err := s.liveLogs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return labs.BuildMatrix(logs), nil
}

func (s *Service) FluidSummary(ctx context.Context, patientID uuid.UUID) (*FluidSummary, error) {
	_, logs, err := s.liveLogs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sum := &FluidSummary{
		Cumulative: icu.CumulativeFluidBalance(logs),
		Days:       icu.BalanceDays(logs),
		Daily:      []DailyFluid{},
	}
	for _, l := range logs {
		if l.FluidBalance == nil {
			continue
		}
		sum.Daily = append(sum.Daily, DailyFluid{LogID: l.ID, Date: l.Date, FluidBalance: *l.FluidBalance})
	}
	return sum, nil
}

func (s *Service) TemperatureFlags(ctx context.Context, patientID uuid.UUID) ([]TemperatureFlag, error) {
	_, logs, err := s.liveLogs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	flags := make([]TemperatureFlag, 0, len(logs))
	for _, l := range logs {
		flags = append(flags, TemperatureFlag{
			LogID:       l.ID,
			Date:        l.Date,
			Temperature: l.VitalSigns.Temperature,
			Severity:    icu.ClassifyTemperature(l.VitalSigns.Temperature),
		})
	}
	return flags, nil
}

// DoseRequest is a bedside infusion to convert. Convention may be empty
// when the drug is in the catalog.
type DoseRequest struct {
	Drug       string         `json:"drug"`
	Mass       string         `json:"mass"`
	Volume     string         `json:"volume"`
	Rate       string         `json:"rate"`
	Convention icu.Convention `json:"convention"`
}

// CalculateDose converts an infusion for the patient using their estimated
// weight.
func (s *Service) CalculateDose(ctx context.Context, patientID uuid.UUID, req DoseRequest) (icu.Dose, error) {
	conv := req.Convention
	if conv == "" {
		c, ok := icu.ConventionFor(req.Drug)
		if !ok {
			return icu.Dose{}, fmt.Errorf("convention is required for drug %q", req.Drug)
		}
		conv = c
	}
	if !conv.Valid() {
		return icu.Dose{}, fmt.Errorf("unknown convention %q", conv)
	}

	p, err := s.getLive(ctx, patientID)
	if err != nil {
		return icu.Dose{}, err
	}
	var weight float64
	if p.EstimatedWeight != nil {
		weight = *p.EstimatedWeight
	}
	d := icu.ConvertDose(icu.DoseInput{
		Mass: req.Mass, Volume: req.Volume, Rate: req.Rate,
		WeightKg: weight, Convention: conv,
	})
	if d.WeightDefaulted {
		s.logger.Warn().
			Str("patient_id", patientID.String()).
			Str("drug", req.Drug).
			Float64("weight_kg", d.WeightKg).
			Msg("patient weight missing, dose uses default weight")
	}
	return d, nil
}
