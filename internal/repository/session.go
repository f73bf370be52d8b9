package repository

import (
	"context"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
	"gorm.io/gorm"
)

// SessionRepository live session store
type SessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id uint) (*models.Session, error)
	FindByJoinCode(ctx context.Context, joinCode string) (*models.Session, error)
	JoinCodeExists(ctx context.Context, joinCode string) (bool, error)
	// AdvanceMission moves the current-mission pointer with compare-and-set
	// semantics: the update only applies while the pointer still equals
	// fromMissionID. Returns false when another writer advanced first. Runs
	// inside tx so the tracker wipe for the new mission commits with it.
	AdvanceMission(ctx context.Context, tx *gorm.DB, sessionID uint, fromMissionID, toMissionID uint, startedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, sessionID uint, status string) error
	SetCurrentMission(ctx context.Context, sessionID uint, missionID uint, startedAt time.Time) error
}

type sessionRepo struct {
	*BaseRepo
}

// NewSessionRepository creates the session repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepo) Update(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *sessionRepo) FindByID(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Preload("Game").
		Preload("CurrentMission").
		First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Preload("Game").
		Preload("CurrentMission").
		Preload("Teams").
		Where("join_code = ?", joinCode).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) JoinCodeExists(ctx context.Context, joinCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("join_code = ?", joinCode).
		Count(&count).Error
	return count > 0, err
}

func (r *sessionRepo) AdvanceMission(ctx context.Context, tx *gorm.DB, sessionID uint, fromMissionID, toMissionID uint, startedAt time.Time) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND current_mission_id = ?", sessionID, fromMissionID).
		Updates(map[string]interface{}{
			"current_mission_id": toMissionID,
			"mission_started_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, sessionID uint, status string) error {
	updates := map[string]interface{}{"status": status}
	now := time.Now()
	switch status {
	case models.SessionInProgress:
		updates["started_at"] = now
	case models.SessionCompleted, models.SessionAbandoned:
		updates["completed_at"] = now
	}
	return r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

func (r *sessionRepo) SetCurrentMission(ctx context.Context, sessionID uint, missionID uint, startedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"current_mission_id": missionID,
			"mission_started_at": startedAt,
		}).Error
}
