package repository

import (
	"context"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// TeamRepository team store
type TeamRepository interface {
	BaseRepository
	Create(ctx context.Context, team *models.Team) error
	Update(ctx context.Context, team *models.Team) error
	FindByID(ctx context.Context, id uint) (*models.Team, error)
	FindBySession(ctx context.Context, sessionID uint) ([]*models.Team, error)
	CountBySession(ctx context.Context, sessionID uint) (int64, error)
	NameExists(ctx context.Context, sessionID uint, name string) (bool, error)
	IncrementSubmissions(ctx context.Context, tx *gorm.DB, teamID uint) error
}

type teamRepo struct {
	*BaseRepo
}

// NewTeamRepository creates the team repository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *teamRepo) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *teamRepo) Update(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Save(team).Error
}

func (r *teamRepo) FindByID(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).
		Preload("Session").
		Preload("Session.Game").
		Preload("Session.CurrentMission").
		First(&team, id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepo) FindBySession(ctx context.Context, sessionID uint) ([]*models.Team, error) {
	var teams []*models.Team
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("name").
		Find(&teams).Error
	return teams, err
}

func (r *teamRepo) CountBySession(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (r *teamRepo) NameExists(ctx context.Context, sessionID uint, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("session_id = ? AND name = ?", sessionID, name).
		Count(&count).Error
	return count > 0, err
}

// IncrementSubmissions bumps the team counter inside the caller's transaction
func (r *teamRepo) IncrementSubmissions(ctx context.Context, tx *gorm.DB, teamID uint) error {
	return tx.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ?", teamID).
		UpdateColumn("total_submissions", gorm.Expr("total_submissions + ?", 1)).Error
}
