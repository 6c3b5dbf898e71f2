package patient

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/domain/icu"
	"github.com/cardioedad/cardioedad/internal/domain/labs"
	"github.com/cardioedad/cardioedad/internal/domain/prescription"
	"github.com/cardioedad/cardioedad/internal/platform/live"
)

func createPatient(t *testing.T, svc *Service, name, unit string) *Patient {
	t.Helper()
	p := &Patient{Name: name, Unit: unit, AdmissionDate: "2026-03-01"}
	require.NoError(t, svc.CreatePatient(context.Background(), p))
	return p
}

func TestCreatePatient(t *testing.T) {
	svc := newTestService()
	p := &Patient{Name: "Maria", Devices: []chart.Device{{Name: "CVC", InsertionDate: "2026-03-02"}}}

	require.NoError(t, svc.CreatePatient(context.Background(), p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, chart.UnitICU, p.Unit)
	assert.Equal(t, StatusActive, p.Status)
	assert.NotEqual(t, uuid.Nil, p.Devices[0].ID)
}

func TestCreatePatient_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    Patient
	}{
		{"missing name", Patient{Unit: chart.UnitICU}},
		{"blank name", Patient{Name: "   "}},
		{"bad unit", Patient{Name: "Ana", Unit: "Pediatria"}},
		{"bad admission date", Patient{Name: "Ana", AdmissionDate: "ontem"}},
		{"negative age", Patient{Name: "Ana", Age: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			p := tt.p
			assert.Error(t, svc.CreatePatient(context.Background(), &p))
		})
	}

	svc := newTestService()
	err := svc.CreatePatient(context.Background(), &Patient{Name: "Ana", Unit: "Pediatria"})
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestGetPatient_WithLogsAndAttachments(t *testing.T) {
	svc := newTestService()
	att := &fakeAttachments{byPatient: map[uuid.UUID][]chart.Attachment{}}
	svc.SetAttachmentStore(att)
	ctx := context.Background()

	p := createPatient(t, svc, "Maria", chart.UnitICU)
	att.byPatient[p.ID] = []chart.Attachment{{Name: "rx-torax.png", Type: chart.AttachmentImage}}
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-02"}))

	got, err := svc.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.DailyLogs, 1)
	assert.Len(t, got.Attachments, 1)
}

func TestGetPatient_DeletedIsNotFound(t *testing.T) {
	svc := newTestService()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	require.NoError(t, svc.DeletePatient(context.Background(), p.ID))

	_, err := svc.GetPatient(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := svc.Exists(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListPatients_Tabs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	icu1 := createPatient(t, svc, "A", chart.UnitICU)
	icu2 := createPatient(t, svc, "B", chart.UnitICU)
	ward := createPatient(t, svc, "C", chart.UnitWard)
	gone := createPatient(t, svc, "D", chart.UnitICU)
	done := createPatient(t, svc, "E", chart.UnitICU)
	require.NoError(t, svc.DeletePatient(ctx, gone.ID))
	_, err := svc.DischargePatient(ctx, done.ID)
	require.NoError(t, err)

	list, total, err := svc.ListPatients(ctx, chart.UnitICU, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, icu2.ID, list[0].ID, "newest first")
	assert.Equal(t, icu1.ID, list[1].ID)

	list, _, err = svc.ListPatients(ctx, chart.UnitWard, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ward.ID, list[0].ID)

	list, _, err = svc.ListPatients(ctx, TabFinished, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)

	_, total, err = svc.ListPatients(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, total, "soft-deleted patients are never listed")

	_, _, err = svc.ListPatients(ctx, "Pediatria", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestUpdatePatient_Partial(t *testing.T) {
	svc := newTestService()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	p.BedNumber = "4"

	weight := 62.5
	drugs := "Noradrenalina 16mg/250ml 10ml/h"
	got, err := svc.UpdatePatient(context.Background(), p.ID, &Update{
		EstimatedWeight: &weight,
		VasoactiveDrugs: &drugs,
		Ventilation:     &chart.Ventilation{Mode: "VCV", FiO2: "40", PEEP: "8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria", got.Name)
	assert.Equal(t, 62.5, *got.EstimatedWeight)
	assert.Equal(t, drugs, got.VasoactiveDrugs)
	assert.Equal(t, "VCV", got.Ventilation.Mode)

	empty := ""
	_, err = svc.UpdatePatient(context.Background(), p.ID, &Update{Name: &empty})
	assert.Error(t, err)
}

func TestTransferPatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	got, err := svc.TransferPatient(ctx, p.ID, chart.UnitWard)
	require.NoError(t, err)
	assert.Equal(t, chart.UnitWard, got.Unit)

	_, err = svc.TransferPatient(ctx, p.ID, "Casa")
	assert.ErrorIs(t, err, ErrInvalidUnit)

	_, err = svc.DischargePatient(ctx, p.ID)
	require.NoError(t, err)
	got, err = svc.TransferPatient(ctx, p.ID, chart.UnitICU)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status, "readmission reactivates")

	_, err = svc.TransferPatient(ctx, uuid.New(), chart.UnitICU)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgePatient(t *testing.T) {
	svc := newTestService()
	att := &fakeAttachments{byPatient: map[uuid.UUID][]chart.Attachment{}}
	svc.SetAttachmentStore(att)
	ctx := context.Background()

	p := createPatient(t, svc, "Maria", chart.UnitICU)
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-02"}))
	require.NoError(t, svc.DeletePatient(ctx, p.ID))

	require.NoError(t, svc.PurgePatient(ctx, p.ID), "soft-deleted patients can be purged")
	assert.Equal(t, []uuid.UUID{p.ID}, att.purged)

	logs, err := svc.logs.ListByPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
	_, err = svc.patients.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgePatient_UsesTx(t *testing.T) {
	svc := newTestService()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	calls := 0
	svc.SetTx(func(ctx context.Context, fn func(ctx context.Context) error) error {
		calls++
		return fn(ctx)
	})
	require.NoError(t, svc.PurgePatient(context.Background(), p.ID))
	assert.Equal(t, 1, calls)
}

func TestDevices(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	d, err := svc.AddDevice(ctx, p.ID, chart.Device{Name: "CVC jugular D", InsertionDate: "2026-03-03"})
	require.NoError(t, err)
	_, err = svc.AddDevice(ctx, p.ID, chart.Device{Name: "SVD"})
	require.NoError(t, err)
	_, err = svc.AddDevice(ctx, p.ID, chart.Device{Name: ""})
	assert.Error(t, err)
	_, err = svc.AddDevice(ctx, p.ID, chart.Device{Name: "PAI", InsertionDate: "03/03"})
	assert.Error(t, err)

	views, err := svc.ListDevices(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 8, views[0].Days)
	assert.Equal(t, "2026-03-10", views[1].InsertionDate, "defaults to today")

	require.NoError(t, svc.RemoveDevice(ctx, p.ID, d.ID))
	assert.ErrorIs(t, svc.RemoveDevice(ctx, p.ID, d.ID), ErrNotFound)

	views, err = svc.ListDevices(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestTogglePrescriptionLine(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	rx := "Dipirona 1g 6/6h\nOmeprazol 40mg"
	_, err := svc.UpdatePatient(ctx, p.ID, &Update{MedicalPrescription: &rx})
	require.NoError(t, err)

	got, err := svc.TogglePrescriptionLine(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dipirona 1g 6/6h\n~~Omeprazol 40mg", got.MedicalPrescription)

	_, err = svc.TogglePrescriptionLine(ctx, p.ID, 5)
	assert.ErrorIs(t, err, prescription.ErrLineOutOfRange)
}

func TestDaysOfHospitalization(t *testing.T) {
	p := &Patient{AdmissionDate: "2026-03-01"}
	assert.Equal(t, 10, p.DaysOfHospitalization(testNow))
	p.AdmissionDate = ""
	assert.Equal(t, -1, p.DaysOfHospitalization(testNow))
}

// -- Daily logs --

func TestSaveLog_UpsertsByDate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	first := &chart.DailyLog{Date: "2026-03-02", Notes: "manha"}
	require.NoError(t, svc.SaveLog(ctx, p.ID, first))
	second := &chart.DailyLog{Date: "2026-03-02", Notes: "tarde"}
	require.NoError(t, svc.SaveLog(ctx, p.ID, second))

	logs, err := svc.logs.ListByPatient(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "tarde", logs[0].Notes)
	assert.Equal(t, 2, logs[0].Version)
}

func TestSaveLog_Normalizes(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	icuPatient := createPatient(t, svc, "Maria", chart.UnitICU)
	wardPatient := createPatient(t, svc, "Jose", chart.UnitWard)

	mk := func() *chart.DailyLog {
		return &chart.DailyLog{
			Date:          "2026-03-02",
			Prescriptions: []string{"Dipirona", "  "},
			Conducts:      []chart.Conduct{{Description: "Eco"}, {Description: ""}},
			Labs:          []chart.LabResult{{TestName: "Sódio", Value: "140"}, {TestName: "Potássio", Value: " "}},
			FluidBalance:  &chart.FluidBalance{Intake: 2000, Output: 1500, Net: 99},
		}
	}

	l := mk()
	require.NoError(t, svc.SaveLog(ctx, icuPatient.ID, l))
	assert.Equal(t, []string{"Dipirona"}, l.Prescriptions)
	assert.Len(t, l.Conducts, 1)
	assert.Len(t, l.Labs, 1)
	require.NotNil(t, l.FluidBalance)
	assert.Equal(t, 500.0, l.FluidBalance.Net)

	l = mk()
	require.NoError(t, svc.SaveLog(ctx, wardPatient.ID, l))
	assert.Nil(t, l.FluidBalance)
}

func TestSaveLog_Validation(t *testing.T) {
	svc := newTestService()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	assert.Error(t, svc.SaveLog(context.Background(), p.ID, &chart.DailyLog{Date: "02/03/2026"}))
	assert.Error(t, svc.SaveLog(context.Background(), p.ID, &chart.DailyLog{Date: "2026-03-02T08:00:00Z"}))
	assert.Error(t, svc.SaveLog(context.Background(), p.ID, &chart.DailyLog{Date: " 2026-03-02"}))
	assert.ErrorIs(t, svc.SaveLog(context.Background(), uuid.New(), &chart.DailyLog{Date: "2026-03-02"}), ErrNotFound)
}

func TestUpdateLog_StaleVersionConflicts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	l := &chart.DailyLog{Date: "2026-03-02", Notes: "v1"}
	require.NoError(t, svc.SaveLog(ctx, p.ID, l))

	mine := l.Clone()
	theirs := l.Clone()

	theirs.Notes = "theirs"
	require.NoError(t, svc.UpdateLog(ctx, p.ID, &theirs))
	assert.Equal(t, 2, theirs.Version)

	mine.Notes = "mine"
	assert.ErrorIs(t, svc.UpdateLog(ctx, p.ID, &mine), ErrConflict)

	stored, err := svc.logs.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "theirs", stored.Notes)
}

func TestUpdateLog_WrongPatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := createPatient(t, svc, "A", chart.UnitICU)
	b := createPatient(t, svc, "B", chart.UnitICU)
	l := &chart.DailyLog{Date: "2026-03-02"}
	require.NoError(t, svc.SaveLog(ctx, a.ID, l))

	cp := l.Clone()
	assert.ErrorIs(t, svc.UpdateLog(ctx, b.ID, &cp), labs.ErrLogNotFound)
	assert.ErrorIs(t, svc.DeleteLog(ctx, b.ID, l.ID), labs.ErrLogNotFound)
	require.NoError(t, svc.DeleteLog(ctx, a.ID, l.ID))
}

func TestSetLabValue(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	d1 := &chart.DailyLog{Date: "2026-03-01", Labs: []chart.LabResult{{TestName: "Troponina", Value: "0.1", Unit: "ng/mL", ReferenceRange: "<0.04"}}}
	d2 := &chart.DailyLog{Date: "2026-03-02"}
	require.NoError(t, svc.SaveLog(ctx, p.ID, d1))
	require.NoError(t, svc.SaveLog(ctx, p.ID, d2))

	got, err := svc.SetLabValue(ctx, p.ID, d2.ID, "Troponina", "0,3", "")
	require.NoError(t, err)
	require.Len(t, got.Labs, 1)
	assert.Equal(t, chart.LabResult{TestName: "Troponina", Value: "0,3", Unit: "ng/mL", ReferenceRange: "<0.04"}, got.Labs[0])
	assert.Equal(t, 2, got.Version)

	got, err = svc.SetLabValue(ctx, p.ID, d2.ID, "Troponina", "", "")
	require.NoError(t, err)
	assert.Empty(t, got.Labs)

	_, err = svc.SetLabValue(ctx, p.ID, uuid.New(), "Sódio", "140", "")
	assert.ErrorIs(t, err, labs.ErrLogNotFound)
	_, err = svc.SetLabValue(ctx, p.ID, d2.ID, "", "140", "")
	assert.Error(t, err)
}

func TestToggleConduct(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	l := &chart.DailyLog{Date: "2026-03-02", Conducts: []chart.Conduct{{Description: "Eco"}, {Description: "Hemocultura"}}}
	require.NoError(t, svc.SaveLog(ctx, p.ID, l))

	got, err := svc.ToggleConduct(ctx, p.ID, l.ID, 1)
	require.NoError(t, err)
	assert.False(t, got.Conducts[0].Verified)
	assert.True(t, got.Conducts[1].Verified)

	got, err = svc.ToggleConduct(ctx, p.ID, l.ID, 1)
	require.NoError(t, err)
	assert.False(t, got.Conducts[1].Verified)

	_, err = svc.ToggleConduct(ctx, p.ID, l.ID, 2)
	assert.Error(t, err)
}

// -- Read models --

func TestFluidSummary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-01", FluidBalance: &chart.FluidBalance{Intake: 2000, Output: 1500}}))
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-02"}))
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-03", FluidBalance: &chart.FluidBalance{Intake: 1000, Output: 1800}}))

	sum, err := svc.FluidSummary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -300.0, sum.Cumulative)
	assert.Equal(t, 2, sum.Days)
	require.Len(t, sum.Daily, 2)
	assert.Equal(t, "2026-03-03", sum.Daily[1].Date)
	assert.Equal(t, -800.0, sum.Daily[1].Net)
}

func TestTemperatureFlags(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-01", VitalSigns: chart.VitalSigns{Temperature: "36,5"}}))
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-02", VitalSigns: chart.VitalSigns{Temperature: "36.5-38.2"}}))

	flags, err := svc.TemperatureFlags(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, icu.SeverityNormal, flags[0].Severity)
	assert.Equal(t, icu.SeverityDanger, flags[1].Severity)
}

func TestLabMatrix(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-01", Labs: []chart.LabResult{{TestName: "Sódio", Value: "130"}}}))
	require.NoError(t, svc.SaveLog(ctx, p.ID, &chart.DailyLog{Date: "2026-03-02", Labs: []chart.LabResult{{TestName: "Sódio", Value: "136"}}}))

	m, err := svc.LabMatrix(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01", "2026-03-02"}, m.Dates())
	cell, ok := m.CellValue("Sódio", "2026-03-02")
	require.True(t, ok)
	assert.Equal(t, "136", cell.Value)
}

func TestCalculateDose(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService()
	svc.logger = zerolog.New(&buf)
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	req := DoseRequest{Drug: "Noradrenalina", Mass: "16mg", Volume: "250", Rate: "10"}
	d, err := svc.CalculateDose(ctx, p.ID, req)
	require.NoError(t, err)
	assert.True(t, d.WeightDefaulted)
	assert.Equal(t, "0.15 mcg/kg/min", d.String())
	assert.Contains(t, buf.String(), "default weight")

	weight := 80.0
	_, err = svc.UpdatePatient(ctx, p.ID, &Update{EstimatedWeight: &weight})
	require.NoError(t, err)
	buf.Reset()
	d, err = svc.CalculateDose(ctx, p.ID, req)
	require.NoError(t, err)
	assert.False(t, d.WeightDefaulted)
	assert.Equal(t, "0.13 mcg/kg/min", d.String())
	assert.Empty(t, buf.String())

	d, err = svc.CalculateDose(ctx, p.ID, DoseRequest{Drug: "Noradrenalina", Mass: "16", Volume: "0", Rate: "10"})
	require.NoError(t, err)
	assert.False(t, d.Computable)

	_, err = svc.CalculateDose(ctx, p.ID, DoseRequest{Drug: "Soro", Mass: "1", Volume: "1", Rate: "1"})
	assert.Error(t, err)

	d, err = svc.CalculateDose(ctx, p.ID, DoseRequest{Drug: "Soro", Mass: "20", Volume: "100", Rate: "6", Convention: icu.UnitsMin})
	require.NoError(t, err)
	assert.InDelta(t, 0.02, d.Value, 1e-9)
}

func TestService_PublishesChartEvents(t *testing.T) {
	svc := newTestService()
	pub := &fakePublisher{}
	svc.SetPublisher(pub)
	ctx := context.Background()

	p := createPatient(t, svc, "Maria", chart.UnitICU)
	l := &chart.DailyLog{Date: "2026-03-02"}
	require.NoError(t, svc.SaveLog(ctx, p.ID, l))
	_, err := svc.TransferPatient(ctx, p.ID, chart.UnitWard)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteLog(ctx, p.ID, l.ID))
	require.NoError(t, svc.DeletePatient(ctx, p.ID))

	assert.Equal(t, []string{
		live.PatientCreated,
		live.LogSaved,
		live.PatientUpdated,
		live.LogDeleted,
		live.PatientDeleted,
	}, pub.types())

	saved := pub.events[1]
	assert.Equal(t, p.ID, saved.PatientID)
	assert.Equal(t, chart.UnitICU, saved.Unit)
	require.NotNil(t, saved.LogID)
	assert.Equal(t, l.ID, *saved.LogID)
	assert.Equal(t, chart.UnitWard, pub.events[2].Unit)
	assert.Nil(t, pub.events[2].LogID)
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService()
	svc.logger = zerolog.New(&buf)
	svc.SetPublisher(&fakePublisher{err: assert.AnError})

	createPatient(t, svc, "Maria", chart.UnitICU)
	assert.Contains(t, buf.String(), "publish chart event")
}

func TestService_FailedWriteDoesNotPublish(t *testing.T) {
	svc := newTestService()
	pub := &fakePublisher{}
	svc.SetPublisher(pub)

	err := svc.CreatePatient(context.Background(), &Patient{Name: "  "})
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestSetLabValue_NoChangeSkipsWrite(t *testing.T) {
	svc := newTestService()
	pub := &fakePublisher{}
	svc.SetPublisher(pub)
	ctx := context.Background()
	p := createPatient(t, svc, "Maria", chart.UnitICU)
	l := &chart.DailyLog{Date: "2026-03-02", Labs: []chart.LabResult{{TestName: "Sódio", Value: "140", Unit: "mEq/L"}}}
	require.NoError(t, svc.SaveLog(ctx, p.ID, l))
	pub.events = nil

	got, err := svc.SetLabValue(ctx, p.ID, l.ID, "Potássio", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, l.Labs, got.Labs)

	got, err = svc.SetLabValue(ctx, p.ID, l.ID, "Sódio", "140", "")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, pub.events)

	stored, err := svc.logs.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestMutate_LocksPatientInsideTx(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo, newMockLogRepo(), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	p := createPatient(t, svc, "Maria", chart.UnitICU)

	inTx := false
	svc.SetTx(func(ctx context.Context, fn func(ctx context.Context) error) error {
		inTx = true
		defer func() { inTx = false }()
		return fn(ctx)
	})
	lockedInTx := 0
	svc.patients = lockSpy{mockPatientRepo: repo, onLock: func() {
		if inTx {
			lockedInTx++
		}
	}}

	_, err := svc.AddDevice(context.Background(), p.ID, chart.Device{Name: "SVD"})
	require.NoError(t, err)
	assert.Equal(t, 1, lockedInTx)
}

type lockSpy struct {
	*mockPatientRepo
	onLock func()
}

func (l lockSpy) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	l.onLock()
	return l.mockPatientRepo.GetForUpdate(ctx, id)
}
