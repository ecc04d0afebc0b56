package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
)

// joinCodeAttempts bounds retries when a generated join code collides.
const joinCodeAttempts = 5

// CreateSession inserts a new session, regenerating the join code on a unique violation.
func (s *Service) CreateSession(ctx context.Context, session *models.Session) error {
	var err error
	for i := 0; i < joinCodeAttempts; i++ {
		err = s.DB.WithContext(ctx).Create(session).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.External(err)
		}
		session.JoinCode = models.NewJoinCode()
	}
	return apperr.External(err)
}

// GetSession loads a session by id. Malformed ids are reported as not found.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apperr.ErrSessionNotFound
	}
	var session models.Session
	if err := s.DB.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// GetSessionByCode resolves a join code.
func (s *Service) GetSessionByCode(ctx context.Context, joinCode string) (*models.Session, error) {
	var session models.Session
	code := strings.ToUpper(strings.TrimSpace(joinCode))
	if err := s.DB.WithContext(ctx).Where("join_code = ?", code).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// AddParticipant is an atomic add-to-set. Joining an ended session is refused
// in the same statement so a concurrent end cannot be overtaken.
func (s *Service) AddParticipant(ctx context.Context, sessionID, identityID string) (*models.Session, error) {
	db := s.DB.WithContext(ctx)
	err := db.Model(&models.Session{}).
		Where("id = ? AND status <> ?", sessionID, models.StatusEnded).
		Where("NOT (? = ANY(participant_ids))", identityID).
		Updates(map[string]interface{}{
			"participant_ids": gorm.Expr("array_append(COALESCE(participant_ids, '{}'), ?)", identityID),
			"updated_at":      gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return nil, apperr.External(err)
	}

	// zero rows affected means absent session, ended session or already a member
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.StatusEnded {
		return nil, apperr.ErrSessionEnded
	}
	return session, nil
}

// RemoveParticipant drops identityID from the participant set. Missing members are a no-op.
func (s *Service) RemoveParticipant(ctx context.Context, sessionID, identityID string) error {
	err := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"participant_ids": gorm.Expr("array_remove(participant_ids, ?)", identityID),
			"updated_at":      gorm.Expr("NOW()"),
		}).Error
	return apperr.External(err)
}

// TransitionStatus is a compare-and-set on the status column.
func (s *Service) TransitionStatus(ctx context.Context, sessionID string, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	res := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND status IN ?", sessionID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return false, apperr.External(res.Error)
	}
	return res.RowsAffected > 0, nil
}
