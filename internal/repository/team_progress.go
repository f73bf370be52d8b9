package repository

import (
	"context"
	"errors"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// TeamProgressRepository per-mission reporting records
type TeamProgressRepository interface {
	BaseRepository
	GetOrCreate(ctx context.Context, tx *gorm.DB, sessionID, teamID, missionID uint) (*models.TeamProgress, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, progress *models.TeamProgress) error
	IncrementSubmissionCount(ctx context.Context, tx *gorm.DB, progressID uint) error
	CountCompleted(ctx context.Context, sessionID, missionID uint) (int64, error)
	ListByTeam(ctx context.Context, teamID uint) ([]*models.TeamProgress, error)
}

type teamProgressRepo struct {
	*BaseRepo
}

// NewTeamProgressRepository creates the team progress repository
func NewTeamProgressRepository(db *gorm.DB) TeamProgressRepository {
	return &teamProgressRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *teamProgressRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, sessionID, teamID, missionID uint) (*models.TeamProgress, error) {
	var progress models.TeamProgress
	err := tx.WithContext(ctx).
		Where("session_id = ? AND team_id = ? AND mission_id = ?", sessionID, teamID, missionID).
		First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress = models.TeamProgress{
		SessionID: sessionID,
		TeamID:    teamID,
		MissionID: missionID,
		StartedAt: time.Now(),
	}
	if err := tx.WithContext(ctx).Create(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *teamProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, progress *models.TeamProgress) error {
	now := time.Now()
	progress.IsCompleted = true
	progress.CompletedAt = &now
	return tx.WithContext(ctx).Save(progress).Error
}

func (r *teamProgressRepo) IncrementSubmissionCount(ctx context.Context, tx *gorm.DB, progressID uint) error {
	return tx.WithContext(ctx).
		Model(&models.TeamProgress{}).
		Where("id = ?", progressID).
		UpdateColumn("submission_count", gorm.Expr("submission_count + ?", 1)).Error
}

func (r *teamProgressRepo) CountCompleted(ctx context.Context, sessionID, missionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamProgress{}).
		Where("session_id = ? AND mission_id = ? AND is_completed = ?", sessionID, missionID, true).
		Count(&count).Error
	return count, err
}

func (r *teamProgressRepo) ListByTeam(ctx context.Context, teamID uint) ([]*models.TeamProgress, error) {
	var records []*models.TeamProgress
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("started_at").
		Find(&records).Error
	return records, err
}
