// Package recording starts and stops composite recordings of sessions and
// records the files the media service uploads.
package recording

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/broadcast"
	lk "liveroom/backend/internal/livekit"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/metrics"
	"liveroom/backend/internal/models"
)

// Media is the external recording service.
type Media interface {
	StartComposite(ctx context.Context, roomName, filePath string) (lk.Job, error)
	Stop(ctx context.Context, jobID string) (lk.Job, error)
	Get(ctx context.Context, jobID string) (lk.Job, error)
	ActiveForRoom(ctx context.Context, roomName string) ([]lk.Job, error)
	ObjectKey(sessionID, fileName string) string
}

// Store persists finished recordings.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	AppendRecording(ctx context.Context, rec *models.RecordingRecord) (bool, error)
	ListRecordings(ctx context.Context, sessionID string) ([]models.RecordingRecord, error)
}

// Linker derives time-limited download URLs.
type Linker interface {
	URL(ctx context.Context, key string) (string, error)
	Enabled() bool
}

// Announcer writes system messages into the session chat.
type Announcer interface {
	PostSystemMessage(ctx context.Context, sessionID, body string) (*models.ChatMessage, error)
}

// Notifier reaches operators out of band.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

var errMediaDisabled = apperr.New(apperr.CodeExternalService, "media service is not configured")

// Orchestrator drives the recording lifecycle. Nothing is retried automatically:
// a duplicate recording costs more than a failed command.
type Orchestrator struct {
	media    Media
	store    Store
	bus      broadcast.Bus
	chat     Announcer
	linker   Linker
	notifier Notifier
	loc      *localization.Localizer
	log      zerolog.Logger

	mu   sync.Mutex
	jobs map[string]models.RecordingJob
}

// Options carries the optional collaborators.
type Options struct {
	Linker   Linker
	Notifier Notifier
}

// NewOrchestrator builds an orchestrator. A nil media disables recording commands.
func NewOrchestrator(media Media, store Store, bus broadcast.Bus, chat Announcer, loc *localization.Localizer, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		media:    media,
		store:    store,
		bus:      bus,
		chat:     chat,
		linker:   opts.Linker,
		notifier: opts.Notifier,
		loc:      loc,
		log:      log.With().Str("component", "recording").Logger(),
		jobs:     make(map[string]models.RecordingJob),
	}
}

// Start begins a composite recording of the session. Only the host may start one.
// If the media service already records the room, the running job is returned.
func (o *Orchestrator) Start(ctx context.Context, caller models.Identity, sessionID, desiredFileName string) (job models.RecordingJob, err error) {
	defer func() { metrics.RecordRecordingCommand("start", err) }()

	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.RecordingJob{}, apperr.External(err)
	}
	if !caller.IsHostOf(session) {
		return models.RecordingJob{}, apperr.ErrNotAuthorized
	}
	if session.Status == models.StatusEnded {
		return models.RecordingJob{}, apperr.ErrSessionEnded
	}
	if o.media == nil {
		return models.RecordingJob{}, errMediaDisabled
	}

	fileName := FileName(desiredFileName, session.Name, time.Now())
	room := models.RoomName(session.ID)

	started, err := o.media.StartComposite(ctx, room, o.media.ObjectKey(session.ID, fileName))
	switch {
	case errors.Is(err, lk.ErrAlreadyExists):
		running, lerr := o.media.ActiveForRoom(ctx, room)
		if lerr != nil {
			return models.RecordingJob{}, lerr
		}
		if len(running) == 0 {
			return models.RecordingJob{}, apperr.New(apperr.CodeExternalService, "recording already exists but no active job was found")
		}
		started = running[0]
		if tracked, ok := o.tracked(started.ID); ok {
			return tracked, nil
		}
	case err != nil:
		o.log.Error().Err(err).Str("session_id", session.ID).Msg("start recording failed")
		return models.RecordingJob{}, err
	}

	job = models.RecordingJob{
		JobID:     started.ID,
		SessionID: session.ID,
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
	}
	o.track(job)
	o.log.Info().Str("session_id", session.ID).Str("job_id", job.JobID).Str("file", fileName).Msg("recording started")

	o.emit(ctx, session.ID, models.EvRecordingStarted, job)
	o.announce(ctx, session.ID, o.loc.Format(localization.KeyRecordingStarted))
	return job, nil
}

// Stop ends a recording. Unknown jobs fail with ErrJobNotFound before anything changes.
func (o *Orchestrator) Stop(ctx context.Context, caller models.Identity, jobID string) (job models.RecordingJob, err error) {
	defer func() { metrics.RecordRecordingCommand("stop", err) }()

	if o.media == nil {
		return models.RecordingJob{}, errMediaDisabled
	}

	job, ok := o.tracked(jobID)
	if !ok {
		// started elsewhere; the media service tells us which session it belongs to
		remote, err := o.media.Get(ctx, jobID)
		if err != nil {
			return models.RecordingJob{}, err
		}
		sessionID, _ := models.SessionIDFromRoom(remote.RoomName)
		job = models.RecordingJob{JobID: jobID, SessionID: sessionID}
	}

	session, err := o.store.GetSession(ctx, job.SessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrSessionNotFound) {
			return models.RecordingJob{}, apperr.ErrJobNotFound
		}
		return models.RecordingJob{}, apperr.External(err)
	}
	if !caller.IsHostOf(session) {
		return models.RecordingJob{}, apperr.ErrNotAuthorized
	}

	if _, err := o.media.Stop(ctx, jobID); err != nil {
		if errors.Is(err, apperr.ErrJobNotFound) {
			// already finished at the media service
			o.untrack(jobID)
		}
		o.log.Error().Err(err).Str("job_id", jobID).Msg("stop recording failed")
		return models.RecordingJob{}, err
	}
	o.untrack(jobID)
	o.log.Info().Str("session_id", session.ID).Str("job_id", jobID).Msg("recording stopped")

	o.emit(ctx, session.ID, models.EvRecordingStopped, job)
	o.announce(ctx, session.ID, o.loc.Format(localization.KeyRecordingStopped))
	return job, nil
}

// Status returns the media service's view of a job without interpreting it.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (models.RecordingStatus, error) {
	if o.media == nil {
		return models.RecordingStatus{}, errMediaDisabled
	}
	remote, err := o.media.Get(ctx, jobID)
	if err != nil {
		return models.RecordingStatus{}, err
	}
	return models.RecordingStatus{JobID: remote.ID, Status: remote.Status, Raw: remote.Raw}, nil
}

// StopAllForSession stops every active job of the session's room.
func (o *Orchestrator) StopAllForSession(ctx context.Context, sessionID string) error {
	if o.media == nil {
		return nil
	}
	running, err := o.media.ActiveForRoom(ctx, models.RoomName(sessionID))
	if err != nil {
		return err
	}

	var firstErr error
	for _, remote := range running {
		_, err := o.media.Stop(ctx, remote.ID)
		metrics.RecordRecordingCommand("stop", err)
		if err != nil && !errors.Is(err, apperr.ErrJobNotFound) {
			o.log.Error().Err(err).Str("job_id", remote.ID).Msg("stop recording on session end failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		job, ok := o.tracked(remote.ID)
		if !ok {
			job = models.RecordingJob{JobID: remote.ID, SessionID: sessionID}
		}
		o.untrack(remote.ID)
		o.emit(ctx, sessionID, models.EvRecordingStopped, job)
	}
	return firstErr
}

// Complete records the files of a finished job, once per (job, file).
func (o *Orchestrator) Complete(ctx context.Context, finished lk.Job) ([]models.RecordingRecord, error) {
	sessionID, ok := models.SessionIDFromRoom(finished.RoomName)
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	if _, err := o.store.GetSession(ctx, sessionID); err != nil {
		return nil, apperr.External(err)
	}
	o.untrack(finished.ID)

	if len(finished.Files) == 0 {
		o.log.Warn().Str("job_id", finished.ID).Str("status", finished.Status).Str("error", finished.Error).Msg("recording finished without files")
		if o.notifier != nil {
			o.notifier.Notify(ctx, o.loc.Format(localization.KeyOpsRecordingFailed, sessionID, finished.Error))
		}
		return nil, nil
	}

	var added []models.RecordingRecord
	for _, f := range finished.Files {
		key := strings.TrimPrefix(f.Name, "/")
		rec := models.RecordingRecord{
			SessionID:  sessionID,
			JobID:      finished.ID,
			FileName:   path.Base(key),
			ObjectKey:  key,
			DurationMs: f.Duration.Milliseconds(),
			SizeBytes:  f.SizeBytes,
		}
		inserted, err := o.store.AppendRecording(ctx, &rec)
		if err != nil {
			return added, apperr.External(err)
		}
		if !inserted {
			continue
		}
		rec.URL = o.link(ctx, rec.ObjectKey)
		added = append(added, rec)

		o.emit(ctx, sessionID, models.EvRecordingAvailable, rec)
		o.announce(ctx, sessionID, o.loc.Format(localization.KeyRecordingAvailable, rec.FileName))
	}
	return added, nil
}

// List returns a session's recordings with freshly derived URLs.
func (o *Orchestrator) List(ctx context.Context, sessionID string) ([]models.RecordingRecord, error) {
	if _, err := o.store.GetSession(ctx, sessionID); err != nil {
		return nil, apperr.External(err)
	}
	recs, err := o.store.ListRecordings(ctx, sessionID)
	if err != nil {
		return nil, apperr.External(err)
	}
	for i := range recs {
		recs[i].URL = o.link(ctx, recs[i].ObjectKey)
	}
	if recs == nil {
		recs = []models.RecordingRecord{}
	}
	return recs, nil
}

// Active lists the jobs this instance started and has not seen finish.
func (o *Orchestrator) Active(sessionID string) []models.RecordingJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.RecordingJob
	for _, j := range o.jobs {
		if j.SessionID == sessionID {
			out = append(out, j)
		}
	}
	return out
}

func (o *Orchestrator) link(ctx context.Context, key string) string {
	if o.linker == nil || !o.linker.Enabled() {
		return ""
	}
	url, err := o.linker.URL(ctx, key)
	if err != nil {
		o.log.Warn().Err(err).Str("key", key).Msg("presign failed")
		return ""
	}
	return url
}

func (o *Orchestrator) emit(ctx context.Context, sessionID string, typ models.EventType, data any) {
	ev := models.Event{Type: typ, SessionID: sessionID, Data: data}
	if err := o.bus.ToSession(ctx, sessionID, ev); err != nil {
		o.log.Error().Err(err).Str("session_id", sessionID).Str("event", string(typ)).Msg("broadcast failed")
	}
}

func (o *Orchestrator) announce(ctx context.Context, sessionID, body string) {
	if o.chat == nil {
		return
	}
	if _, err := o.chat.PostSystemMessage(ctx, sessionID, body); err != nil {
		o.log.Error().Err(err).Str("session_id", sessionID).Msg("recording announcement failed")
	}
}

func (o *Orchestrator) track(job models.RecordingJob) {
	o.mu.Lock()
	o.jobs[job.JobID] = job
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(jobID string) {
	o.mu.Lock()
	delete(o.jobs, jobID)
	o.mu.Unlock()
}

func (o *Orchestrator) tracked(jobID string) (models.RecordingJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	return j, ok
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName picks a safe MP4 file name, derived from the session name and time
// when the caller did not ask for one.
func FileName(desired, sessionName string, at time.Time) string {
	base := strings.TrimSuffix(strings.TrimSpace(desired), ".mp4")
	if base == "" {
		base = fmt.Sprintf("%s-%s", sessionName, at.UTC().Format("20060102-150405"))
	}
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "recording-" + at.UTC().Format("20060102-150405")
	}
	if len(base) > 100 {
		base = base[:100]
	}
	return base + ".mp4"
}
