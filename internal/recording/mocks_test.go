package recording_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	lk "liveroom/backend/internal/livekit"
	"liveroom/backend/internal/models"
)

// MockMedia is a testify mock of recording.Media.
type MockMedia struct {
	mock.Mock
}

func (m *MockMedia) StartComposite(ctx context.Context, roomName, filePath string) (lk.Job, error) {
	args := m.Called(ctx, roomName, filePath)
	return args.Get(0).(lk.Job), args.Error(1)
}

func (m *MockMedia) Stop(ctx context.Context, jobID string) (lk.Job, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(lk.Job), args.Error(1)
}

func (m *MockMedia) Get(ctx context.Context, jobID string) (lk.Job, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(lk.Job), args.Error(1)
}

func (m *MockMedia) ActiveForRoom(ctx context.Context, roomName string) ([]lk.Job, error) {
	args := m.Called(ctx, roomName)
	jobs, _ := args.Get(0).([]lk.Job)
	return jobs, args.Error(1)
}

func (m *MockMedia) ObjectKey(sessionID, fileName string) string {
	return "recordings/" + sessionID + "/" + fileName
}

// MockStore is a testify mock of recording.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockStore) AppendRecording(ctx context.Context, rec *models.RecordingRecord) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListRecordings(ctx context.Context, sessionID string) ([]models.RecordingRecord, error) {
	args := m.Called(ctx, sessionID)
	recs, _ := args.Get(0).([]models.RecordingRecord)
	return recs, args.Error(1)
}

type linker struct{}

func (linker) URL(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key + "?sig=1", nil
}

func (linker) Enabled() bool { return true }

type announcer struct {
	mu     sync.Mutex
	bodies []string
}

func (a *announcer) PostSystemMessage(_ context.Context, sessionID, body string) (*models.ChatMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bodies = append(a.bodies, body)
	return &models.ChatMessage{SessionID: sessionID, Body: body, Kind: models.KindSystem}, nil
}

type bus struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *bus) ToSession(_ context.Context, _ string, ev models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *bus) ToSessionExcept(ctx context.Context, sessionID, _ string, ev models.Event) error {
	return b.ToSession(ctx, sessionID, ev)
}

func (b *bus) ToIdentity(ctx context.Context, sessionID, _ string, ev models.Event) error {
	return b.ToSession(ctx, sessionID, ev)
}

func (b *bus) types() []models.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.EventType, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Type)
	}
	return out
}

type notes struct {
	mu    sync.Mutex
	texts []string
}

func (n *notes) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}
