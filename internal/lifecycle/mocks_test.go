package lifecycle_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"liveroom/backend/internal/models"
)

// MockStore is a testify mock of lifecycle.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out copies so callers cannot mutate the fixture
	s := *args.Get(0).(*models.Session)
	return &s, args.Error(1)
}

func (m *MockStore) TransitionStatus(ctx context.Context, sessionID string, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	args := m.Called(ctx, sessionID, from, to)
	return args.Bool(0), args.Error(1)
}

type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) EnsureRoom(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockRooms) DeleteRoom(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type MockRecordings struct {
	mock.Mock
}

func (m *MockRecordings) StopAllForSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

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

type notes struct {
	mu    sync.Mutex
	texts []string
}

func (n *notes) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}
