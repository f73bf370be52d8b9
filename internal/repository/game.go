package repository

import (
	"context"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// GameRepository game template store
type GameRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.Game) error
	Update(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id uint) (*models.Game, error)
	FindBySlug(ctx context.Context, slug string) (*models.Game, error)
	List(ctx context.Context, p *Pagination) ([]*models.Game, error)
}

type gameRepo struct {
	*BaseRepo
}

// NewGameRepository creates the game repository
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *gameRepo) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *gameRepo) Update(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Save(game).Error
}

func (r *gameRepo) FindByID(ctx context.Context, id uint) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).First(&game, id).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepo) FindBySlug(ctx context.Context, slug string) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).
		Preload("Missions", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("mission_order")
		}).
		Where("slug = ?", slug).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepo) List(ctx context.Context, p *Pagination) ([]*models.Game, error) {
	var games []*models.Game

	r.db.WithContext(ctx).Model(&models.Game{}).Count(&p.Total)

	err := r.db.WithContext(ctx).
		Scopes(Paginate(p)).
		Order("created_at DESC").
		Find(&games).Error
	return games, err
}
