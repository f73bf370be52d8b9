package repository

import (
	"context"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// FacilitatorRepository teacher account store
type FacilitatorRepository interface {
	BaseRepository
	Create(ctx context.Context, facilitator *models.Facilitator) error
	FindByID(ctx context.Context, id uint) (*models.Facilitator, error)
	FindByEmail(ctx context.Context, email string) (*models.Facilitator, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id uint) error
}

type facilitatorRepo struct {
	*BaseRepo
}

// NewFacilitatorRepository creates the facilitator repository
func NewFacilitatorRepository(db *gorm.DB) FacilitatorRepository {
	return &facilitatorRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *facilitatorRepo) Create(ctx context.Context, facilitator *models.Facilitator) error {
	return r.db.WithContext(ctx).Create(facilitator).Error
}

func (r *facilitatorRepo) FindByID(ctx context.Context, id uint) (*models.Facilitator, error) {
	var facilitator models.Facilitator
	err := r.db.WithContext(ctx).First(&facilitator, id).Error
	if err != nil {
		return nil, err
	}
	return &facilitator, nil
}

func (r *facilitatorRepo) FindByEmail(ctx context.Context, email string) (*models.Facilitator, error) {
	var facilitator models.Facilitator
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&facilitator).Error
	if err != nil {
		return nil, err
	}
	return &facilitator, nil
}

func (r *facilitatorRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Facilitator{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *facilitatorRepo) UpdateLastLogin(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Facilitator{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now()).Error
}
