package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

// ErrPatientNotFound is returned when uploading to an unknown or deleted
// patient.
var ErrPatientNotFound = errors.New("patient not found")

// PatientChecker reports whether a live patient exists.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo          Repository
	store         BlobStore
	patients      PatientChecker
	publicBaseURL string
	logger        zerolog.Logger
}

// NewService builds the attachment service. When publicBaseURL is empty,
// attachment URLs point at the API's own content endpoint.
func NewService(repo Repository, store BlobStore, patients PatientChecker, publicBaseURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		store:         store,
		patients:      patients,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Upload stores r under a fresh object key and records its metadata. The
// blob is removed again if the metadata insert fails.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, name, contentType string, r io.Reader) (*chart.Attachment, error) {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, ErrMissingFileName
	}
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	ct := normalizeContentType(contentType, data)
	if !AllowedContentTypes[ct] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, ct)
	}

	sum := sha256.Sum256(data)
	id := uuid.New()
	a := &chart.Attachment{
		ID:          id,
		PatientID:   patientID,
		Name:        name,
		Type:        chart.AttachmentFile,
		ContentType: ct,
		Size:        int64(len(data)),
		ObjectKey:   patientID.String() + "/" + id.String() + strings.ToLower(path.Ext(name)),
		Hash:        hex.EncodeToString(sum[:]),
	}
	if strings.HasPrefix(ct, "image/") {
		a.Type = chart.AttachmentImage
	}

	if err := s.store.Put(ctx, a.ObjectKey, ct, data); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(ctx, a.ObjectKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("object_key", a.ObjectKey).Msg("orphaned attachment blob")
		}
		return nil, err
	}
	s.withURL(a)
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("attachment_id", a.ID.String()).
		Int64("size", a.Size).
		Msg("attachment uploaded")
	return a, nil
}

func normalizeContentType(declared string, data []byte) string {
	ct := declared
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		ct = mt
	}
	if ct == "" || ct == "application/octet-stream" {
		ct, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func (s *Service) withURL(a *chart.Attachment) {
	if s.publicBaseURL != "" {
		a.URL = s.publicBaseURL + "/" + a.ObjectKey
		return
	}
	a.URL = "/api/v1/attachments/" + a.ID.String() + "/content"
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.Attachment, error) {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []chart.Attachment{}
	}
	for i := range list {
		s.withURL(&list[i])
	}
	return list, nil
}

// Open returns the metadata and a reader over the bytes. The caller closes
// the reader.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (*chart.Attachment, io.ReadCloser, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Get(ctx, a.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return a, rc, nil
}

// Delete removes one attachment of patientID.
func (s *Service) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.PatientID != patientID {
		return ErrBlobNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, a.ObjectKey); err != nil {
		s.logger.Warn().Err(err).Str("object_key", a.ObjectKey).Msg("orphaned attachment blob")
	}
	return nil
}

// DeleteByPatient drops every attachment of a patient being purged. Blob
// failures are logged; the metadata is removed regardless.
func (s *Service) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteByPatient(ctx, patientID); err != nil {
		return err
	}
	for _, a := range list {
		if err := s.store.Delete(ctx, a.ObjectKey); err != nil {
			s.logger.Warn().Err(err).Str("object_key", a.ObjectKey).Msg("orphaned attachment blob")
		}
	}
	return nil
}

