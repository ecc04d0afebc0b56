package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
)

// Storage is the durable store used by the realtime components.
// Every mutation is a single conditional statement so concurrent
// instances never lose an update.
type Storage interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, joinCode string) (*models.Session, error)

	// AddParticipant appends identityID to the participant set if absent.
	// It fails with ErrSessionNotFound or ErrSessionEnded and returns the fresh session otherwise.
	AddParticipant(ctx context.Context, sessionID, identityID string) (*models.Session, error)
	RemoveParticipant(ctx context.Context, sessionID, identityID string) error
	// TransitionStatus moves the session to `to` only when its status is one of `from`.
	TransitionStatus(ctx context.Context, sessionID string, from []models.SessionStatus, to models.SessionStatus) (bool, error)

	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	PurgeMessages(ctx context.Context, sessionID string) (int64, error)

	// AppendRecording inserts the record unless (job_id, file_name) already exists.
	AppendRecording(ctx context.Context, rec *models.RecordingRecord) (bool, error)
	ListRecordings(ctx context.Context, sessionID string) ([]models.RecordingRecord, error)
}

// Service implements Storage on PostgreSQL.
type Service struct {
	DB *gorm.DB
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Open connects to PostgreSQL. Unique violations are translated to gorm.ErrDuplicatedKey.
func Open(dsn string, debug bool) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if !debug {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Session{},
		&models.ChatMessage{},
		&models.RecordingRecord{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrSessionNotFound
	}
	return apperr.External(err)
}
