package repository

import (
	"context"
	"errors"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// CompletionTrackerRepository per-(session, team, mission) progress store
type CompletionTrackerRepository interface {
	BaseRepository
	// GetOrCreate returns the tracker for the triple, creating it with the
	// given required-input count on first use. Runs inside tx so tracker
	// creation commits or rolls back with the input save.
	GetOrCreate(ctx context.Context, tx *gorm.DB, sessionID, teamID, missionID uint, totalRequired int) (*models.CompletionTracker, bool, error)
	Save(ctx context.Context, tx *gorm.DB, tracker *models.CompletionTracker) error
	Find(ctx context.Context, sessionID, teamID, missionID uint) (*models.CompletionTracker, error)
	CountReady(ctx context.Context, sessionID, missionID uint) (int64, error)
	ListBySessionAndMission(ctx context.Context, sessionID, missionID uint) ([]*models.CompletionTracker, error)
	// DeleteForMission clears every team's tracker for one mission so a
	// freshly entered phase starts at zero for the whole session.
	DeleteForMission(ctx context.Context, tx *gorm.DB, sessionID, missionID uint) (int64, error)
}

type trackerRepo struct {
	*BaseRepo
}

// NewCompletionTrackerRepository creates the tracker repository
func NewCompletionTrackerRepository(db *gorm.DB) CompletionTrackerRepository {
	return &trackerRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *trackerRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, sessionID, teamID, missionID uint, totalRequired int) (*models.CompletionTracker, bool, error) {
	var tracker models.CompletionTracker
	err := tx.WithContext(ctx).
		Where("session_id = ? AND team_id = ? AND mission_id = ?", sessionID, teamID, missionID).
		First(&tracker).Error
	if err == nil {
		return &tracker, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	tracker = models.CompletionTracker{
		SessionID:           sessionID,
		TeamID:              teamID,
		MissionID:           missionID,
		TotalRequiredInputs: totalRequired,
	}
	if err := tx.WithContext(ctx).Create(&tracker).Error; err != nil {
		return nil, false, err
	}
	return &tracker, true, nil
}

func (r *trackerRepo) Save(ctx context.Context, tx *gorm.DB, tracker *models.CompletionTracker) error {
	return tx.WithContext(ctx).Save(tracker).Error
}

func (r *trackerRepo) Find(ctx context.Context, sessionID, teamID, missionID uint) (*models.CompletionTracker, error) {
	var tracker models.CompletionTracker
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND team_id = ? AND mission_id = ?", sessionID, teamID, missionID).
		First(&tracker).Error
	if err != nil {
		return nil, err
	}
	return &tracker, nil
}

func (r *trackerRepo) CountReady(ctx context.Context, sessionID, missionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CompletionTracker{}).
		Where("session_id = ? AND mission_id = ? AND is_ready_to_advance = ?", sessionID, missionID, true).
		Count(&count).Error
	return count, err
}

func (r *trackerRepo) ListBySessionAndMission(ctx context.Context, sessionID, missionID uint) ([]*models.CompletionTracker, error) {
	var trackers []*models.CompletionTracker
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND mission_id = ?", sessionID, missionID).
		Find(&trackers).Error
	return trackers, err
}

func (r *trackerRepo) DeleteForMission(ctx context.Context, tx *gorm.DB, sessionID, missionID uint) (int64, error) {
	result := tx.WithContext(ctx).
		Unscoped().
		Where("session_id = ? AND mission_id = ?", sessionID, missionID).
		Delete(&models.CompletionTracker{})
	return result.RowsAffected, result.Error
}
