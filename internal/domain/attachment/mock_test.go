package attachment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cardioedad/cardioedad/internal/domain/chart"
)

type mockRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]chart.Attachment
	clock     time.Time
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items: make(map[uuid.UUID]chart.Attachment),
		clock: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockRepo) Create(_ context.Context, a *chart.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.clock = m.clock.Add(time.Second)
	a.CreatedAt = m.clock
	m.items[a.ID] = *a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*chart.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return &a, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]chart.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chart.Attachment
	for _, a := range m.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrBlobNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.items {
		if a.PatientID == patientID {
			delete(m.items, id)
		}
	}
	return nil
}

type fakePatients map[uuid.UUID]bool

func (f fakePatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f[id], nil
}

var errRepo = errors.New("db down")

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	store     *MemoryStore
	patientID uuid.UUID
}

func newTestEnv(publicBaseURL string) *testEnv {
	env := &testEnv{
		repo:      newMockRepo(),
		store:     NewMemoryStore(),
		patientID: uuid.New(),
	}
	env.svc = NewService(env.repo, env.store, fakePatients{env.patientID: true}, publicBaseURL, zerolog.Nop())
	return env
}
