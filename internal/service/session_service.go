package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/decipherworld/classroom-server/internal/repository"
	"github.com/decipherworld/classroom-server/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// joinCodeAttempts retries on the off chance a generated code collides
const joinCodeAttempts = 5

type sessionService struct {
	sessionRepo repository.SessionRepository
	gameRepo    repository.GameRepository
	missionRepo repository.MissionRepository
	teamRepo    repository.TeamRepository
	trackerRepo repository.CompletionTrackerRepository
	log         *zap.Logger

	joinCodeLength int
}

// NewSessionService creates the session service
func NewSessionService(
	sessionRepo repository.SessionRepository,
	gameRepo repository.GameRepository,
	missionRepo repository.MissionRepository,
	teamRepo repository.TeamRepository,
	trackerRepo repository.CompletionTrackerRepository,
	log *zap.Logger,
	joinCodeLength int,
) SessionService {
	if joinCodeLength <= 0 {
		joinCodeLength = 6
	}
	return &sessionService{
		sessionRepo:    sessionRepo,
		gameRepo:       gameRepo,
		missionRepo:    missionRepo,
		teamRepo:       teamRepo,
		trackerRepo:    trackerRepo,
		log:            log,
		joinCodeLength: joinCodeLength,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*models.Session, error) {
	game, err := s.gameRepo.FindBySlug(ctx, req.GameSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("game %q not found", req.GameSlug))
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if game.Status != "active" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, fmt.Sprintf("game %q is not active", req.GameSlug))
	}

	joinCode, err := s.uniqueJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		GameID:   game.ID,
		JoinCode: joinCode,
		Status:   models.SessionWaiting,
	}
	if req.FacilitatorID != 0 {
		session.FacilitatorID = &req.FacilitatorID
	}

	// Sessions open on the first mission so joining students land somewhere
	first, err := s.missionRepo.FindFirst(ctx, game.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if first != nil {
		session.CurrentMissionID = &first.ID
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("session created",
		zap.String("join_code", session.JoinCode),
		zap.String("game", game.Slug),
		zap.Uint("facilitator_id", req.FacilitatorID))

	return s.sessionRepo.FindByID(ctx, session.ID)
}

func (s *sessionService) uniqueJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code, err := utils.GenerateJoinCode(s.joinCodeLength)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrUnknown, "join code generation failed")
		}
		exists, err := s.sessionRepo.JoinCodeExists(ctx, code)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperrors.New(apperrors.ErrAlreadyExists, "could not generate a unique join code")
}

func (s *sessionService) GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error) {
	session, err := s.sessionRepo.FindByJoinCode(ctx, joinCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrSessionNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return session, nil
}

func (s *sessionService) GetSessionSnapshot(ctx context.Context, joinCode string) (*SessionSnapshot, error) {
	session, err := s.GetSessionByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	snapshot := &SessionSnapshot{
		JoinCode:           session.JoinCode,
		Status:             session.Status,
		GameName:           session.Game.Name,
		AutoAdvanceEnabled: session.Game.AutoAdvanceEnabled,
		ThresholdPercent:   session.Game.CompletionThresholdPercent,
		CurrentMission:     missionSummary(session.CurrentMission),
		MissionStartedAt:   session.MissionStartedAt,
		Teams:              make([]TeamSnapshot, 0, len(session.Teams)),
	}

	var trackers []*models.CompletionTracker
	if session.CurrentMissionID != nil {
		trackers, err = s.trackerRepo.ListBySessionAndMission(ctx, session.ID, *session.CurrentMissionID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
	}
	byTeam := make(map[uint]*models.CompletionTracker, len(trackers))
	for _, tr := range trackers {
		byTeam[tr.TeamID] = tr
	}

	for i := range session.Teams {
		team := &session.Teams[i]
		entry := TeamSnapshot{
			ID:          team.ID,
			Name:        team.Name,
			Emoji:       team.Emoji,
			Color:       team.Color,
			MemberCount: len(team.Members),
		}
		if tr, ok := byTeam[team.ID]; ok {
			entry.Percentage = tr.CompletionPercent
			entry.IsReadyToAdvance = tr.IsReadyToAdvance
		}
		snapshot.Teams = append(snapshot.Teams, entry)
	}

	return snapshot, nil
}

func (s *sessionService) StartSession(ctx context.Context, sessionID uint) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.ErrSessionNotFound)
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if session.IsTerminal() {
		return apperrors.New(apperrors.ErrSessionEnded)
	}
	if session.Status == models.SessionInProgress {
		return nil
	}
	return s.sessionRepo.UpdateStatus(ctx, sessionID, models.SessionInProgress)
}

func (s *sessionService) AbandonSession(ctx context.Context, sessionID uint) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.ErrSessionNotFound)
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if session.IsTerminal() {
		return nil
	}
	return s.sessionRepo.UpdateStatus(ctx, sessionID, models.SessionAbandoned)
}

func (s *sessionService) CreateTeam(ctx context.Context, req *CreateTeamRequest) (*models.Team, error) {
	session, err := s.GetSessionByJoinCode(ctx, req.JoinCode)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, apperrors.New(apperrors.ErrSessionEnded)
	}
	if req.Name == "" || len(req.Name) > 100 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "team name must be 1-100 characters")
	}

	taken, err := s.teamRepo.NameExists(ctx, session.ID, req.Name)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if taken {
		return nil, apperrors.New(apperrors.ErrTeamNameTaken)
	}

	members := make(models.JSONList, 0, len(req.Members))
	for _, m := range req.Members {
		if m.Name == "" || len(m.Name) > maxStudentFieldLen ||
			m.StudentSessionID == "" || len(m.StudentSessionID) > maxStudentFieldLen {
			return nil, apperrors.New(apperrors.ErrInvalidStudentData)
		}
		members = append(members, map[string]interface{}{
			"name":               m.Name,
			"student_session_id": m.StudentSessionID,
		})
	}

	team := &models.Team{
		SessionID: session.ID,
		Name:      req.Name,
		Members:   members,
	}
	if req.Emoji != "" {
		team.Emoji = req.Emoji
	}
	if req.Color != "" {
		team.Color = req.Color
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrTeamNameTaken)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}

	s.log.Info("team created",
		zap.String("join_code", session.JoinCode),
		zap.String("team", team.Name),
		zap.Int("members", len(members)))

	return team, nil
}

func (s *sessionService) ListTeams(ctx context.Context, sessionID uint) ([]*models.Team, error) {
	teams, err := s.teamRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return teams, nil
}
