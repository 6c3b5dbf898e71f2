package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
	"github.com/cardioedad/cardioedad/internal/platform/live"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	mu     sync.Mutex
	store  map[uuid.UUID]*Patient
	seq    int
	locked int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = uuid.New()
	p.CreatedAt = testNow.Add(time.Duration(m.seq) * time.Second)
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	m.locked++
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, p := range m.store {
		if p.Status == StatusDeleted {
			continue
		}
		if f.Unit != "" && p.Unit != f.Unit {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// -- Mock Daily Log Repository --

type mockLogRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]chart.DailyLog
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{store: make(map[uuid.UUID]chart.DailyLog)}
}

func (m *mockLogRepo) GetByID(_ context.Context, id uuid.UUID) (*chart.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := l.Clone()
	return &cp, nil
}

func (m *mockLogRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]chart.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chart.DailyLog
	for _, l := range m.store {
		if l.PatientID == patientID {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *mockLogRepo) Upsert(_ context.Context, l *chart.DailyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.store {
		if existing.PatientID == l.PatientID && existing.Date == l.Date {
			l.ID = id
			l.Version = existing.Version + 1
			l.CreatedAt = existing.CreatedAt
			m.store[id] = l.Clone()
			return nil
		}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.Version = 1
	l.CreatedAt = testNow
	m.store[l.ID] = l.Clone()
	return nil
}

func (m *mockLogRepo) Update(_ context.Context, l *chart.DailyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.store[l.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != l.Version {
		return ErrConflict
	}
	l.Version++
	m.store[l.ID] = l.Clone()
	return nil
}

func (m *mockLogRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockLogRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.store {
		if l.PatientID == patientID {
			delete(m.store, id)
		}
	}
	return nil
}

// -- Fake attachment store --

type fakeAttachments struct {
	byPatient map[uuid.UUID][]chart.Attachment
	purged    []uuid.UUID
}

func (f *fakeAttachments) ListByPatient(_ context.Context, patientID uuid.UUID) ([]chart.Attachment, error) {
	return f.byPatient[patientID], nil
}

func (f *fakeAttachments) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	f.purged = append(f.purged, patientID)
	delete(f.byPatient, patientID)
	return nil
}

func newTestService() *Service {
	svc := NewService(newMockPatientRepo(), newMockLogRepo(), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

// -- Fake Publisher --

type fakePublisher struct {
	events []live.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e live.Event) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) types() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}
