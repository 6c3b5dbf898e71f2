package attachment

import (
	"context"

	"github.com/google/uuid"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

type Repository interface {
	Create(ctx context.Context, a *chart.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*chart.Attachment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}
