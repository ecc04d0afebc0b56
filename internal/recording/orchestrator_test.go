package recording_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"liveroom/backend/internal/apperr"
	lk "liveroom/backend/internal/livekit"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/models"
	"liveroom/backend/internal/recording"
)

const sessionID = "9b2f6c1e-4e3a-4b55-9d8c-2f1a7e6b0c11"

var (
	host  = models.Identity{ID: "host-1", DisplayName: "Olena", Role: models.RoleHost}
	child = models.Identity{ID: "child-1", DisplayName: "Ann", Role: models.RoleParticipant}
)

type fixture struct {
	media *MockMedia
	store *MockStore
	bus   *bus
	chat  *announcer
	notes *notes
	orch  *recording.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := localization.NewLocalizer("en")
	require.NoError(t, err)

	f := &fixture{media: new(MockMedia), store: new(MockStore), bus: &bus{}, chat: &announcer{}, notes: &notes{}}
	f.orch = recording.NewOrchestrator(f.media, f.store, f.bus, f.chat, loc,
		recording.Options{Linker: linker{}, Notifier: f.notes}, zerolog.Nop())
	return f
}

func session(status models.SessionStatus) *models.Session {
	return &models.Session{ID: sessionID, Name: "Math", HostID: host.ID, Status: status}
}

func TestStart_HostStartsRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.media.On("StartComposite", ctx, room, "recordings/"+sessionID+"/lesson-1.mp4").
		Return(lk.Job{ID: "EG_1", RoomName: room, Active: true}, nil)

	job, err := f.orch.Start(ctx, host, sessionID, "lesson 1")
	require.NoError(t, err)

	assert.Equal(t, "EG_1", job.JobID)
	assert.Equal(t, sessionID, job.SessionID)
	assert.Equal(t, "lesson-1.mp4", job.FileName)
	assert.Equal(t, []models.EventType{models.EvRecordingStarted}, f.bus.types())
	assert.Equal(t, []string{"Recording started"}, f.chat.bodies)
	assert.Len(t, f.orch.Active(sessionID), 1)
	f.media.AssertExpectations(t)
}

func TestStart_NonHostIsRejectedWithoutJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)

	_, err := f.orch.Start(ctx, child, sessionID, "")

	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)
	f.media.AssertNotCalled(t, "StartComposite", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.orch.Active(sessionID))
	assert.Empty(t, f.bus.events)
}

func TestStart_EndedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusEnded), nil)

	_, err := f.orch.Start(ctx, host, sessionID, "")
	assert.ErrorIs(t, err, apperr.ErrSessionEnded)
}

func TestStart_UnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, "missing").Return(nil, apperr.ErrSessionNotFound)

	_, err := f.orch.Start(ctx, host, "missing", "")
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestStart_AlreadyRecordingReturnsRunningJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.media.On("StartComposite", ctx, room, mock.Anything).Return(lk.Job{}, lk.ErrAlreadyExists)
	f.media.On("ActiveForRoom", ctx, room).Return([]lk.Job{{ID: "EG_running", RoomName: room, Active: true}}, nil)

	job, err := f.orch.Start(ctx, host, sessionID, "again")
	require.NoError(t, err)
	assert.Equal(t, "EG_running", job.JobID)
}

func TestStart_ExternalFailureIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.media.On("StartComposite", ctx, mock.Anything, mock.Anything).
		Return(lk.Job{}, apperr.New(apperr.CodeExternalService, "egress unavailable"))

	_, err := f.orch.Start(ctx, host, sessionID, "")
	assert.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
	assert.Equal(t, "egress unavailable", apperr.MessageOf(err))
	assert.Empty(t, f.orch.Active(sessionID))
}

func TestStart_MediaDisabled(t *testing.T) {
	loc, err := localization.NewLocalizer("en")
	require.NoError(t, err)
	store := new(MockStore)
	store.On("GetSession", mock.Anything, sessionID).Return(session(models.StatusActive), nil)

	orch := recording.NewOrchestrator(nil, store, &bus{}, nil, loc, recording.Options{}, zerolog.Nop())
	_, err = orch.Start(context.Background(), host, sessionID, "")
	assert.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
}

func TestStop_UnknownJobChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.media.On("Get", ctx, "EG_nope").Return(lk.Job{}, apperr.ErrJobNotFound)

	_, err := f.orch.Stop(ctx, host, "EG_nope")

	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
	f.media.AssertNotCalled(t, "Stop", mock.Anything, mock.Anything)
	assert.Empty(t, f.bus.events)
	assert.Empty(t, f.chat.bodies)
}

func TestStop_TrackedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.media.On("StartComposite", ctx, room, mock.Anything).Return(lk.Job{ID: "EG_1", RoomName: room}, nil)
	f.media.On("Stop", ctx, "EG_1").Return(lk.Job{ID: "EG_1"}, nil)

	_, err := f.orch.Start(ctx, host, sessionID, "x")
	require.NoError(t, err)

	job, err := f.orch.Stop(ctx, host, "EG_1")
	require.NoError(t, err)
	assert.Equal(t, "x.mp4", job.FileName)
	assert.Empty(t, f.orch.Active(sessionID))
	assert.Equal(t, []models.EventType{models.EvRecordingStarted, models.EvRecordingStopped}, f.bus.types())
	f.media.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestStop_TrackedJobAlreadyFinishedIsForgotten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.media.On("StartComposite", ctx, room, mock.Anything).Return(lk.Job{ID: "EG_1", RoomName: room}, nil)
	f.media.On("Stop", ctx, "EG_1").Return(lk.Job{}, apperr.ErrJobNotFound)

	_, err := f.orch.Start(ctx, host, sessionID, "x")
	require.NoError(t, err)
	require.Len(t, f.orch.Active(sessionID), 1)

	_, err = f.orch.Stop(ctx, host, "EG_1")

	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
	assert.Empty(t, f.orch.Active(sessionID))
}

func TestStart_StoreOutageIsExternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, sessionID).Return(nil, errors.New("dial tcp: connection refused"))

	_, err := f.orch.Start(ctx, host, sessionID, "")

	assert.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
	assert.Equal(t, "dial tcp: connection refused", apperr.MessageOf(err))
	f.media.AssertNotCalled(t, "StartComposite", mock.Anything, mock.Anything, mock.Anything)
}

func TestStop_UntrackedJobIsAuthorizedByRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.media.On("Get", ctx, "EG_other").Return(lk.Job{ID: "EG_other", RoomName: room}, nil)
	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)

	_, err := f.orch.Stop(ctx, child, "EG_other")
	assert.ErrorIs(t, err, apperr.ErrNotAuthorized)
	f.media.AssertNotCalled(t, "Stop", mock.Anything, mock.Anything)

	f.media.On("Stop", ctx, "EG_other").Return(lk.Job{ID: "EG_other"}, nil)
	_, err = f.orch.Stop(ctx, host, "EG_other")
	assert.NoError(t, err)
}

func TestStop_JobForeignRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.media.On("Get", ctx, "EG_x").Return(lk.Job{ID: "EG_x", RoomName: "someone-elses-room"}, nil)
	f.store.On("GetSession", ctx, "").Return(nil, apperr.ErrSessionNotFound)

	_, err := f.orch.Stop(ctx, host, "EG_x")
	assert.ErrorIs(t, err, apperr.ErrJobNotFound)
}

func TestStatus_ReturnsRawState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := []byte(`{"egressId":"EG_1","status":"EGRESS_ACTIVE"}`)
	f.media.On("Get", ctx, "EG_1").Return(lk.Job{ID: "EG_1", Status: "EGRESS_ACTIVE", Raw: raw}, nil)

	st, err := f.orch.Status(ctx, "EG_1")
	require.NoError(t, err)
	assert.Equal(t, "EGRESS_ACTIVE", st.Status)
	assert.JSONEq(t, string(raw), string(st.Raw))
}

func TestStopAllForSession_IgnoresVanishedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.media.On("ActiveForRoom", ctx, room).Return([]lk.Job{{ID: "EG_1"}, {ID: "EG_2"}}, nil)
	f.media.On("Stop", ctx, "EG_1").Return(lk.Job{}, apperr.ErrJobNotFound)
	f.media.On("Stop", ctx, "EG_2").Return(lk.Job{ID: "EG_2"}, nil)

	require.NoError(t, f.orch.StopAllForSession(ctx, sessionID))
	assert.Len(t, f.bus.events, 2)
}

func TestStopAllForSession_ReportsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.RoomName(sessionID)

	f.media.On("ActiveForRoom", ctx, room).Return([]lk.Job{{ID: "EG_1"}}, nil)
	f.media.On("Stop", ctx, "EG_1").Return(lk.Job{}, apperr.New(apperr.CodeExternalService, "down"))

	err := f.orch.StopAllForSession(ctx, sessionID)
	assert.Equal(t, apperr.CodeExternalService, apperr.CodeOf(err))
	assert.Empty(t, f.bus.events)
}

func TestComplete_RecordsEachFileOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := "recordings/" + sessionID + "/lesson.mp4"
	finished := lk.Job{
		ID:       "EG_1",
		RoomName: models.RoomName(sessionID),
		Files:    []lk.File{{Name: key, Duration: 90 * time.Second, SizeBytes: 1024}},
	}

	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)
	f.store.On("AppendRecording", ctx, mock.MatchedBy(func(r *models.RecordingRecord) bool {
		return r.JobID == "EG_1" && r.FileName == "lesson.mp4" && r.ObjectKey == key && r.DurationMs == 90000
	})).Return(true, nil).Once()

	recs, err := f.orch.Complete(ctx, finished)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].URL, key)
	assert.Equal(t, []models.EventType{models.EvRecordingAvailable}, f.bus.types())
	assert.Equal(t, []string{"Recording lesson.mp4 is available"}, f.chat.bodies)

	// redelivered webhook
	f.store.On("AppendRecording", ctx, mock.Anything).Return(false, nil).Once()
	recs, err = f.orch.Complete(ctx, finished)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Len(t, f.bus.events, 1)
}

func TestComplete_FailedJobNotifiesOperators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusActive), nil)

	recs, err := f.orch.Complete(ctx, lk.Job{ID: "EG_1", RoomName: models.RoomName(sessionID), Error: "upload denied"})
	require.NoError(t, err)
	assert.Empty(t, recs)
	require.Len(t, f.notes.texts, 1)
	assert.Contains(t, f.notes.texts[0], "upload denied")
	f.store.AssertNotCalled(t, "AppendRecording", mock.Anything, mock.Anything)
}

func TestComplete_ForeignRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Complete(context.Background(), lk.Job{ID: "EG_1", RoomName: "other"})
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestList_AddsURLs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.On("GetSession", ctx, sessionID).Return(session(models.StatusEnded), nil)
	f.store.On("ListRecordings", ctx, sessionID).Return([]models.RecordingRecord{{ObjectKey: "k1"}}, nil)

	recs, err := f.orch.List(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://files.example/k1?sig=1", recs[0].URL)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, "lesson.mp4", recording.FileName("lesson.mp4", "Math", at))
	assert.Equal(t, "Math-20260304-050607.mp4", recording.FileName("", "Math", at))
	assert.Equal(t, "etc-passwd.mp4", recording.FileName("../etc/passwd", "Math", at))
	assert.Equal(t, "recording-20260304-050607.mp4", recording.FileName("///", "Math", at))
}
