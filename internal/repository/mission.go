package repository

import (
	"context"
	"errors"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// MissionRepository mission store
type MissionRepository interface {
	BaseRepository
	Create(ctx context.Context, mission *models.Mission) error
	FindByID(ctx context.Context, id uint) (*models.Mission, error)
	FindByGameAndOrder(ctx context.Context, gameID uint, order int) (*models.Mission, error)
	// FindNext returns the active mission following the given order within
	// the same game, nil when the game has no further mission.
	FindNext(ctx context.Context, gameID uint, currentOrder int) (*models.Mission, error)
	FindFirst(ctx context.Context, gameID uint) (*models.Mission, error)
	ListByGame(ctx context.Context, gameID uint) ([]*models.Mission, error)
}

type missionRepo struct {
	*BaseRepo
}

// NewMissionRepository creates the mission repository
func NewMissionRepository(db *gorm.DB) MissionRepository {
	return &missionRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *missionRepo) Create(ctx context.Context, mission *models.Mission) error {
	return r.db.WithContext(ctx).Create(mission).Error
}

func (r *missionRepo) FindByID(ctx context.Context, id uint) (*models.Mission, error) {
	var mission models.Mission
	err := r.db.WithContext(ctx).First(&mission, id).Error
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepo) FindByGameAndOrder(ctx context.Context, gameID uint, order int) (*models.Mission, error) {
	var mission models.Mission
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND mission_order = ?", gameID, order).
		First(&mission).Error
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepo) FindNext(ctx context.Context, gameID uint, currentOrder int) (*models.Mission, error) {
	var mission models.Mission
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND mission_order = ? AND is_active = ?", gameID, currentOrder+1, true).
		First(&mission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepo) FindFirst(ctx context.Context, gameID uint) (*models.Mission, error) {
	var mission models.Mission
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("mission_order").
		First(&mission).Error
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

func (r *missionRepo) ListByGame(ctx context.Context, gameID uint) ([]*models.Mission, error) {
	var missions []*models.Mission
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("mission_order").
		Find(&missions).Error
	return missions, err
}
