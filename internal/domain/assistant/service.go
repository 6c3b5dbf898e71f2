package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/domain/patient"
)

// ErrDisabled is returned when no model is configured.
var ErrDisabled = errors.New("assistant is not configured")

// NoSummary is returned when the model produced nothing usable.
const NoSummary = "Nenhum resumo gerado."

// PatientReader loads a patient with its daily logs.
type PatientReader interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	model    Model
	patients PatientReader
	logger   zerolog.Logger
}

// NewService builds the assistant. A nil model disables it; every call then
// returns ErrDisabled.
func NewService(model Model, patients PatientReader, logger zerolog.Logger) *Service {
	return &Service{model: model, patients: patients, logger: logger}
}

// Summary is a generated clinical note.
type Summary struct {
	PatientID uuid.UUID `json:"patient_id"`
	Text      string    `json:"text"`
	LogCount  int       `json:"logCount"`
}

// Summarize writes a short clinical note from the patient's latest logs.
func (s *Service) Summarize(ctx context.Context, patientID uuid.UUID) (*Summary, error) {
	if s.model == nil {
		return nil, ErrDisabled
	}
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	prompt, err := summaryPrompt(p)
	if err != nil {
		return nil, err
	}

	text, err := s.model.Generate(ctx, Prompt{Text: prompt})
	switch {
	case errors.Is(err, ErrEmptyResponse):
		text = NoSummary
	case err != nil:
		return nil, err
	}
	return &Summary{
		PatientID: patientID,
		Text:      strings.TrimSpace(text),
		LogCount:  len(recentLogs(p.DailyLogs)),
	}, nil
}

// SuggestHypotheses proposes differentials for free-text symptoms. Blank
// entries and hypotheses the patient already has are dropped.
func (s *Service) SuggestHypotheses(ctx context.Context, patientID uuid.UUID, symptoms string) ([]string, error) {
	if s.model == nil {
		return nil, ErrDisabled
	}
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return nil, fmt.Errorf("symptoms are required")
	}
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	text, err := s.model.Generate(ctx, Prompt{
		Text:       hypothesesPrompt(symptoms, p.DiagnosticHypotheses),
		StringList: true,
	})
	if errors.Is(err, ErrEmptyResponse) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode hypotheses: %w", err)
	}

	seen := make(map[string]bool, len(p.DiagnosticHypotheses)+len(raw))
	for _, h := range p.DiagnosticHypotheses {
		seen[strings.ToLower(strings.TrimSpace(h))] = true
	}
	out := make([]string, 0, len(raw))
	for _, h := range raw {
		h = strings.TrimSpace(h)
		key := strings.ToLower(h)
		if h == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out, nil
}
