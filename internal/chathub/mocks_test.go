package chathub_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
	"liveroom/backend/internal/presence"
)

// memStore backs every component of the hub with in-memory state.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	msgs     []models.ChatMessage
	nextID   uint
	// outage, when set, fails every session read as an unreachable database would
	outage error
}

func newMemStore(sessions ...*models.Session) *memStore {
	m := &memStore{sessions: make(map[string]*models.Session)}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *memStore) copyOf(s *models.Session) *models.Session {
	cp := *s
	cp.ParticipantIDs = append([]string{}, s.ParticipantIDs...)
	return &cp
}

func (m *memStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outage != nil {
		return nil, m.outage
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	return m.copyOf(s), nil
}

func (m *memStore) fail(err error) {
	m.mu.Lock()
	m.outage = err
	m.mu.Unlock()
}

func (m *memStore) GetSessionByCode(_ context.Context, code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.JoinCode == strings.ToUpper(code) {
			return m.copyOf(s), nil
		}
	}
	return nil, apperr.ErrSessionNotFound
}

func (m *memStore) AddParticipant(_ context.Context, sessionID, identityID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	if s.Status == models.StatusEnded {
		return nil, apperr.ErrSessionEnded
	}
	if !s.HasParticipant(identityID) {
		s.ParticipantIDs = append(s.ParticipantIDs, identityID)
	}
	return m.copyOf(s), nil
}

func (m *memStore) RemoveParticipant(_ context.Context, sessionID, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	var out []string
	for _, id := range s.ParticipantIDs {
		if id != identityID {
			out = append(out, id)
		}
	}
	s.ParticipantIDs = out
	return nil
}

func (m *memStore) TransitionStatus(_ context.Context, sessionID string, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SaveMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ChatMessage{}
	for _, msg := range m.msgs {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) PurgeMessages(_ context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (m *memStore) participants(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.sessions[sessionID].ParticipantIDs...)
}

func (m *memStore) status(sessionID string) models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID].Status
}

// MockRecordings is a testify mock of chathub.Recordings. Active reads the
// running field directly so joins need no expectation.
type MockRecordings struct {
	mock.Mock
	running []models.RecordingJob
}

func (m *MockRecordings) Active(sessionID string) []models.RecordingJob {
	var out []models.RecordingJob
	for _, j := range m.running {
		if j.SessionID == sessionID {
			out = append(out, j)
		}
	}
	return out
}

func (m *MockRecordings) Start(ctx context.Context, caller models.Identity, sessionID, desiredFileName string) (models.RecordingJob, error) {
	args := m.Called(ctx, caller, sessionID, desiredFileName)
	return args.Get(0).(models.RecordingJob), args.Error(1)
}

func (m *MockRecordings) Stop(ctx context.Context, caller models.Identity, jobID string) (models.RecordingJob, error) {
	args := m.Called(ctx, caller, jobID)
	return args.Get(0).(models.RecordingJob), args.Error(1)
}

func (m *MockRecordings) Status(ctx context.Context, jobID string) (models.RecordingStatus, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(models.RecordingStatus), args.Error(1)
}

type tokens struct{}

func (tokens) Generate(room, identity, _ string, host bool) (string, error) {
	if host {
		return "host-token:" + room, nil
	}
	return "token:" + identity + ":" + room, nil
}

// fakeConn is a client whose queued frames can be inspected.
type fakeConn struct {
	id       string
	identity models.Identity
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(id string, identity models.Identity) *fakeConn {
	return &fakeConn{id: id, identity: identity, send: make(chan []byte, 64)}
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) Identity() models.Identity { return c.identity }

func (c *fakeConn) TrySend(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return presence.ErrBackpressure
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return presence.ErrBackpressure
	}
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type frame struct {
	Type      models.EventType  `json:"type"`
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	Data      json.RawMessage   `json:"data"`
	Error     *models.ErrorBody `json:"error"`
}

// drain returns every frame queued on c so far.
func drain(t *testing.T, c *fakeConn) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.send:
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		case <-time.After(10 * time.Millisecond):
			return out
		}
	}
}

func ofType(frames []frame, typ models.EventType) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func chatBodies(t *testing.T, frames []frame) []string {
	t.Helper()
	var out []string
	for _, f := range ofType(frames, models.EvChatMessage) {
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		out = append(out, msg.Body)
	}
	return out
}
