package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

// ListFilter narrows a patient listing. Empty fields match everything except
// that deleted patients are never returned.
type ListFilter struct {
	Unit   string
	Status string
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetForUpdate is GetByID holding the row lock until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error)
}

type DailyLogRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*chart.DailyLog, error)
	// ListByPatient returns every log of the patient ordered by date.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.DailyLog, error)
	// Upsert writes the log for (PatientID, Date), replacing an existing
	// entry for that day.
	Upsert(ctx context.Context, l *chart.DailyLog) error
	// Update writes the log only if its Version is still current.
	Update(ctx context.Context, l *chart.DailyLog) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}

// AttachmentStore is the slice of the attachment service a patient needs.
type AttachmentStore interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.Attachment, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}
