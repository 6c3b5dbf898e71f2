package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/platform/db"
)

const uniqueViolation = "23505"

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, name, age, gender, estimated_weight, bed_number, unit, status,
	COALESCE(to_char(admission_date, 'YYYY-MM-DD'), ''), admission_history,
	personal_history, home_medications, medical_prescription, vasoactive_drugs, sedation_analgesia,
	devices, ventilation, diagnostic_hypotheses, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, name, age, gender, estimated_weight, bed_number, unit, status,
			admission_date, admission_history, personal_history, home_medications,
			medical_prescription, vasoactive_drugs, sedation_analgesia,
			devices, ventilation, diagnostic_hypotheses
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,
			NULLIF($9, '')::date,$10,$11,$12,
			$13,$14,$15,
			$16,$17,$18
		) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.EstimatedWeight, p.BedNumber, p.Unit, p.Status,
		p.AdmissionDate, p.AdmissionHistory, strs(p.PersonalHistory), strs(p.HomeMedications),
		p.MedicalPrescription, p.VasoactiveDrugs, p.SedationAnalgesia,
		devices(p.Devices), p.Ventilation, strs(p.DiagnosticHypotheses),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
}

func (r *patientRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1 FOR UPDATE`, id)
}

func (r *patientRepoPG) get(ctx context.Context, query string, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name=$2, age=$3, gender=$4, estimated_weight=$5, bed_number=$6, unit=$7, status=$8,
			admission_date=NULLIF($9, '')::date, admission_history=$10, personal_history=$11, home_medications=$12,
			medical_prescription=$13, vasoactive_drugs=$14, sedation_analgesia=$15,
			devices=$16, ventilation=$17, diagnostic_hypotheses=$18, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.EstimatedWeight, p.BedNumber, p.Unit, p.Status,
		p.AdmissionDate, p.AdmissionHistory, strs(p.PersonalHistory), strs(p.HomeMedications),
		p.MedicalPrescription, p.VasoactiveDrugs, p.SedationAnalgesia,
		devices(p.Devices), p.Ventilation, strs(p.DiagnosticHypotheses),
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := []string{"status <> 'deleted'"}
	var args []interface{}
	if f.Unit != "" {
		args = append(args, f.Unit)
		where = append(where, fmt.Sprintf("unit = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM patients WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, cond, len(args)-1, len(args))
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.Age, &p.Gender, &p.EstimatedWeight, &p.BedNumber, &p.Unit, &p.Status,
		&p.AdmissionDate, &p.AdmissionHistory,
		&p.PersonalHistory, &p.HomeMedications, &p.MedicalPrescription, &p.VasoactiveDrugs, &p.SedationAnalgesia,
		&p.Devices, &p.Ventilation, &p.DiagnosticHypotheses, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// NOT NULL array and JSONB columns need empty values rather than NULL.
func strs(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func devices(d []chart.Device) []chart.Device {
	if d == nil {
		return []chart.Device{}
	}
	return d
}

// -- Daily Log Repository --

type dailyLogRepoPG struct {
	pool *pgxpool.Pool
}

func NewDailyLogRepo(pool *pgxpool.Pool) DailyLogRepository {
	return &dailyLogRepoPG{pool: pool}
}

func (r *dailyLogRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const logCols = `id, patient_id, to_char(date, 'YYYY-MM-DD'), vital_signs, notes, prescriptions,
	conducts, labs, fluid_balance, version, created_at, updated_at`

func (r *dailyLogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*chart.DailyLog, error) {
	l, err := scanLog(r.conn(ctx).QueryRow(ctx, `SELECT `+logCols+` FROM daily_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily log: %w", err)
	}
	return l, nil
}

func (r *dailyLogRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]chart.DailyLog, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+logCols+` FROM daily_logs WHERE patient_id = $1 ORDER BY date, created_at`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var logs []chart.DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (r *dailyLogRepoPG) Upsert(ctx context.Context, l *chart.DailyLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO daily_logs (
			id, patient_id, date, vital_signs, notes, prescriptions, conducts, labs, fluid_balance
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, date) DO UPDATE SET
			vital_signs = EXCLUDED.vital_signs,
			notes = EXCLUDED.notes,
			prescriptions = EXCLUDED.prescriptions,
			conducts = EXCLUDED.conducts,
			labs = EXCLUDED.labs,
			fluid_balance = EXCLUDED.fluid_balance,
			version = daily_logs.version + 1,
			updated_at = NOW()
		RETURNING id, version, created_at, updated_at`,
		l.ID, l.PatientID, l.Date, l.VitalSigns, l.Notes, strs(l.Prescriptions),
		conducts(l.Conducts), labResults(l.Labs), l.FluidBalance,
	).Scan(&l.ID, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}
	return nil
}

func (r *dailyLogRepoPG) Update(ctx context.Context, l *chart.DailyLog) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE daily_logs SET
			date=$3::date, vital_signs=$4, notes=$5, prescriptions=$6, conducts=$7, labs=$8,
			fluid_balance=$9, version=version+1, updated_at=NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		l.ID, l.Version, l.Date, l.VitalSigns, l.Notes, strs(l.Prescriptions),
		conducts(l.Conducts), labResults(l.Labs), l.FluidBalance,
	).Scan(&l.Version, &l.UpdatedAt)

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("%w: a log already exists for %s", ErrConflict, l.Date)
	case errors.Is(err, pgx.ErrNoRows):
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM daily_logs WHERE id = $1)`, l.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check daily log: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	default:
		return fmt.Errorf("update daily log: %w", err)
	}
}

func (r *dailyLogRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM daily_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete daily log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dailyLogRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM daily_logs WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("delete daily logs: %w", err)
	}
	return nil
}

func scanLog(row pgx.Row) (*chart.DailyLog, error) {
	var l chart.DailyLog
	err := row.Scan(
		&l.ID, &l.PatientID, &l.Date, &l.VitalSigns, &l.Notes, &l.Prescriptions,
		&l.Conducts, &l.Labs, &l.FluidBalance, &l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func conducts(c []chart.Conduct) []chart.Conduct {
	if c == nil {
		return []chart.Conduct{}
	}
	return c
}

func labResults(r []chart.LabResult) []chart.LabResult {
	if r == nil {
		return []chart.LabResult{}
	}
	return r
}
