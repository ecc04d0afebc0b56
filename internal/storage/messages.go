package storage

import (
	"context"

	"gorm.io/gorm/clause"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
)

// SaveMessage persists a chat message and fills its ID.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	return apperr.External(s.DB.WithContext(ctx).Create(msg).Error)
}

// RecentMessages returns the newest `limit` messages in ascending order.
func (s *Service) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	var history []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, apperr.External(err)
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// PurgeMessages deletes the whole chat history of a session.
func (s *Service) PurgeMessages(ctx context.Context, sessionID string) (int64, error) {
	res := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.ChatMessage{})
	return res.RowsAffected, apperr.External(res.Error)
}

// AppendRecording records a finished upload once.
func (s *Service) AppendRecording(ctx context.Context, rec *models.RecordingRecord) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "file_name"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, apperr.External(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListRecordings returns the recordings of a session, oldest first.
func (s *Service) ListRecordings(ctx context.Context, sessionID string) ([]models.RecordingRecord, error) {
	var recs []models.RecordingRecord
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").Order("id asc").
		Find(&recs).Error
	return recs, apperr.External(err)
}
