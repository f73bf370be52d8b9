package repository

import (
	"context"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// PhaseInputRepository student submission store
type PhaseInputRepository interface {
	BaseRepository
	// CreateBatch inserts one submission's inputs inside tx. The partial
	// unique index on active (team, mission, student_session_id) makes a
	// racing duplicate fail the whole transaction.
	CreateBatch(ctx context.Context, tx *gorm.DB, inputs []*models.PhaseInput) error
	ActiveExists(ctx context.Context, teamID, missionID uint, studentSessionID string) (bool, error)
	CountActive(ctx context.Context, teamID, missionID uint) (int64, error)
	ListByTeamAndMission(ctx context.Context, teamID, missionID uint) ([]*models.PhaseInput, error)
	// InvalidateForTeamAndMission soft-deletes a team's inputs for one
	// mission, used on facilitator phase reset.
	InvalidateForTeamAndMission(ctx context.Context, tx *gorm.DB, teamID, missionID uint) (int64, error)
	// ApplyTeacherScore sets the score on all not-yet-scored inputs
	ApplyTeacherScore(ctx context.Context, tx *gorm.DB, teamID, missionID uint, score int) (int64, error)
}

type phaseInputRepo struct {
	*BaseRepo
}

// NewPhaseInputRepository creates the phase input repository
func NewPhaseInputRepository(db *gorm.DB) PhaseInputRepository {
	return &phaseInputRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *phaseInputRepo) CreateBatch(ctx context.Context, tx *gorm.DB, inputs []*models.PhaseInput) error {
	if len(inputs) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(inputs).Error
}

func (r *phaseInputRepo) ActiveExists(ctx context.Context, teamID, missionID uint, studentSessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PhaseInput{}).
		Where("team_id = ? AND mission_id = ? AND student_session_id = ? AND is_active = ?",
			teamID, missionID, studentSessionID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *phaseInputRepo) CountActive(ctx context.Context, teamID, missionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PhaseInput{}).
		Where("team_id = ? AND mission_id = ? AND is_active = ?", teamID, missionID, true).
		Count(&count).Error
	return count, err
}

func (r *phaseInputRepo) ListByTeamAndMission(ctx context.Context, teamID, missionID uint) ([]*models.PhaseInput, error) {
	var inputs []*models.PhaseInput
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND mission_id = ? AND is_active = ?", teamID, missionID, true).
		Order("input_order, created_at").
		Find(&inputs).Error
	return inputs, err
}

func (r *phaseInputRepo) InvalidateForTeamAndMission(ctx context.Context, tx *gorm.DB, teamID, missionID uint) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&models.PhaseInput{}).
		Where("team_id = ? AND mission_id = ? AND is_active = ?", teamID, missionID, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *phaseInputRepo) ApplyTeacherScore(ctx context.Context, tx *gorm.DB, teamID, missionID uint, score int) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&models.PhaseInput{}).
		Where("team_id = ? AND mission_id = ? AND teacher_score IS NULL", teamID, missionID).
		Updates(map[string]interface{}{
			"teacher_score": score,
			"scored_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}
