package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const cols = `id, patient_id, name, type, content_type, size, object_key, hash, created_at`

func (r *repoPG) Create(ctx context.Context, a *chart.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO attachments (id, patient_id, name, type, content_type, size, object_key, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		a.ID, a.PatientID, a.Name, a.Type, a.ContentType, a.Size, a.ObjectKey, a.Hash,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*chart.Attachment, error) {
	a, err := scanAttachment(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM attachments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return a, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.Attachment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM attachments WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var out []chart.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlobNotFound
	}
	return nil
}

func (r *repoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM attachments WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}
	return nil
}

func scanAttachment(row pgx.Row) (*chart.Attachment, error) {
	var a chart.Attachment
	err := row.Scan(&a.ID, &a.PatientID, &a.Name, &a.Type, &a.ContentType, &a.Size, &a.ObjectKey, &a.Hash, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
