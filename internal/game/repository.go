package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrAlreadySettled = errors.New("game already settled")
)

type SessionRepository interface {
	CreateSession(ctx context.Context, tx *gorm.DB, session *Session) error
	GetSession(ctx context.Context, gameID string) (*Session, error)
	CompleteSession(ctx context.Context, tx *gorm.DB, gameID string, prizeID *string, completedAt time.Time) error
}

type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepositoryImpl(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) CreateSession(ctx context.Context, tx *gorm.DB, session *Session) error {
	if err := tx.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create game session: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) GetSession(ctx context.Context, gameID string) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).Where("id = ?", gameID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game session: %w", err)
	}
	return &session, nil
}

// CompleteSession flips ACTIVE to COMPLETED guarded by the stored status, so
// two racing claims cannot both settle the same game.
func (r *SessionRepositoryImpl) CompleteSession(ctx context.Context, tx *gorm.DB, gameID string, prizeID *string, completedAt time.Time) error {
	result := tx.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status = ?", gameID, SessionStatusActive).
		Updates(map[string]interface{}{
			"status":       SessionStatusCompleted,
			"prize_id":     prizeID,
			"completed_at": completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete game session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySettled
	}
	return nil
}
