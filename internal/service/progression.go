package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/decipherworld/classroom-server/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// progressionService implements ProgressionService
type progressionService struct {
	db          *gorm.DB
	sessionRepo repository.SessionRepository
	teamRepo    repository.TeamRepository
	missionRepo repository.MissionRepository
	inputRepo   repository.PhaseInputRepository
	trackerRepo repository.CompletionTrackerRepository
	progRepo    repository.TeamProgressRepository
	validator   *InputValidator
	broadcaster Broadcaster
	log         *zap.Logger

	defaultThreshold int
	defaultCountdown time.Duration
}

// NewProgressionService creates the progression service
func NewProgressionService(
	db *gorm.DB,
	sessionRepo repository.SessionRepository,
	teamRepo repository.TeamRepository,
	missionRepo repository.MissionRepository,
	inputRepo repository.PhaseInputRepository,
	trackerRepo repository.CompletionTrackerRepository,
	progRepo repository.TeamProgressRepository,
	validator *InputValidator,
	broadcaster Broadcaster,
	log *zap.Logger,
	defaultThreshold int,
	defaultCountdown time.Duration,
) ProgressionService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if defaultThreshold <= 0 || defaultThreshold > 100 {
		defaultThreshold = 100
	}
	if defaultCountdown <= 0 {
		defaultCountdown = 5 * time.Second
	}
	return &progressionService{
		db:               db,
		sessionRepo:      sessionRepo,
		teamRepo:         teamRepo,
		missionRepo:      missionRepo,
		inputRepo:        inputRepo,
		trackerRepo:      trackerRepo,
		progRepo:         progRepo,
		validator:        validator,
		broadcaster:      broadcaster,
		log:              log,
		defaultThreshold: defaultThreshold,
		defaultCountdown: defaultCountdown,
	}
}

// requiredInputs computes the tracker quota for a mission and team. A
// declared schema wins; requiring all members multiplies by team size; a
// schemaless mission falls back to the per-type default.
func requiredInputs(mission *models.Mission, team *models.Team) int {
	if n := mission.SchemaInputCount(); n > 0 {
		if mission.RequiresAllTeamMembers {
			return n * team.Size()
		}
		return n
	}
	if n, ok := models.DefaultRequiredInputs[mission.MissionType]; ok {
		return n
	}
	return 1
}

func (s *progressionService) ProcessPhaseInput(ctx context.Context, req *SubmitInputsRequest) (*SubmissionResult, error) {
	validated, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	team := validated.Team
	mission := validated.Mission
	session := validated.Session

	if session.IsTerminal() {
		return nil, apperrors.New(apperrors.ErrSessionEnded)
	}

	inputs := make([]*models.PhaseInput, 0, len(req.InputData))
	for i, item := range req.InputData {
		// Orders are assigned from list position, keeping the batch unique
		// under the store's active-submission constraint
		order := i + 1
		inputs = append(inputs, &models.PhaseInput{
			TeamID:           team.ID,
			MissionID:        mission.ID,
			SessionID:        session.ID,
			StudentName:      req.StudentData.Name,
			StudentSessionID: req.StudentData.SessionID,
			InputType:        item.Type,
			InputLabel:       item.Label,
			SelectedValue:    item.Value,
			InputOrder:       order,
			TimeTakenSeconds: item.TimeTaken,
			IsActive:         true,
		})
	}

	var tracker *models.CompletionTracker
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.inputRepo.CreateBatch(ctx, tx, inputs); err != nil {
			if isUniqueViolation(err) {
				return apperrors.New(apperrors.ErrDuplicateSubmission)
			}
			return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
		}

		t, _, err := s.trackerRepo.GetOrCreate(ctx, tx, session.ID, team.ID, mission.ID,
			requiredInputs(mission, team))
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}

		// Every accepted input counts once toward the quota
		t.CompletedInputs += len(inputs)
		t.UpdateCompletionStatus()
		if err := s.trackerRepo.Save(ctx, tx, t); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}

		progress, err := s.progRepo.GetOrCreate(ctx, tx, session.ID, team.ID, mission.ID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if err := s.progRepo.IncrementSubmissionCount(ctx, tx, progress.ID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		if t.IsReadyToAdvance && !progress.IsCompleted {
			if err := s.progRepo.MarkCompleted(ctx, tx, progress); err != nil {
				return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
			}
		}

		if err := s.teamRepo.IncrementSubmissions(ctx, tx, team.ID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}

		tracker = t
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(err, apperrors.ErrTransaction)
	}

	completion := &CompletionStatus{
		TeamID:           team.ID,
		TeamName:         team.Name,
		TeamEmoji:        team.Emoji,
		CompletedInputs:  tracker.CompletedInputs,
		RequiredInputs:   tracker.TotalRequiredInputs,
		Percentage:       tracker.CompletionPercent,
		IsReadyToAdvance: tracker.IsReadyToAdvance,
	}

	s.log.Info("phase input accepted",
		zap.String("join_code", session.JoinCode),
		zap.Uint("team_id", team.ID),
		zap.Uint("mission_id", mission.ID),
		zap.String("student", req.StudentData.SessionID),
		zap.Int("inputs", len(inputs)),
		zap.Float64("completion", tracker.CompletionPercent))

	// Broadcasts after commit; failures degrade to log lines
	s.broadcaster.BroadcastToSession(session.JoinCode, EventInputSubmissionUpdate, map[string]interface{}{
		"team_id":      team.ID,
		"team_name":    team.Name,
		"mission_id":   mission.ID,
		"student_name": req.StudentData.Name,
		"input_count":  len(inputs),
	})
	s.broadcaster.BroadcastToSession(session.JoinCode, EventCompletionStatus, map[string]interface{}{
		"team_data": map[string]interface{}{
			"id":    team.ID,
			"name":  team.Name,
			"emoji": team.Emoji,
		},
		"completion_percentage": tracker.CompletionPercent,
		"is_ready_to_advance":   tracker.IsReadyToAdvance,
	})

	result := &SubmissionResult{
		InputsSaved: len(inputs),
		Completion:  completion,
	}

	decision, err := s.CheckAutoProgression(ctx, session, mission)
	if err != nil {
		// The submission is committed; a failed decision check only costs
		// this round's advancement evaluation
		s.log.Warn("auto-progression check failed",
			zap.String("join_code", session.JoinCode), zap.Error(err))
		return result, nil
	}
	result.Decision = decision

	return result, nil
}

func (s *progressionService) CheckAutoProgression(ctx context.Context, session *models.Session, mission *models.Mission) (*AdvanceDecision, error) {
	game := &session.Game
	if game.ID == 0 {
		loaded, err := s.sessionRepo.FindByID(ctx, session.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		game = &loaded.Game
	}

	current := missionSummary(mission)
	decision := &AdvanceDecision{
		CurrentMission:   current,
		ThresholdPercent: s.thresholdFor(game),
		CountdownSeconds: s.countdownFor(game),
	}

	if !game.AutoAdvanceEnabled {
		decision.Reason = "auto-advance disabled for this game"
		return decision, nil
	}

	totalTeams, err := s.teamRepo.CountBySession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if totalTeams == 0 {
		decision.Reason = "no teams in session"
		return decision, nil
	}

	readyTeams, err := s.trackerRepo.CountReady(ctx, session.ID, mission.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	decision.ReadyTeams = int(readyTeams)
	decision.TotalTeams = int(totalTeams)

	readyPercent := float64(readyTeams) / float64(totalTeams) * 100
	if readyPercent < float64(decision.ThresholdPercent) {
		decision.Reason = fmt.Sprintf("%d of %d teams ready, below %d%% threshold",
			readyTeams, totalTeams, decision.ThresholdPercent)
		return decision, nil
	}

	next, err := s.missionRepo.FindNext(ctx, game.ID, mission.Order)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if next == nil {
		decision.Reason = "final phase reached, holding"
		return decision, nil
	}

	decision.ShouldAdvance = true
	decision.NextMission = missionSummary(next)
	decision.Reason = fmt.Sprintf("%d of %d teams ready, threshold %d%% met",
		readyTeams, totalTeams, decision.ThresholdPercent)
	return decision, nil
}

func (s *progressionService) ExecuteAutoAdvancement(ctx context.Context, sessionID uint, fromMissionID, toMissionID uint) (bool, error) {
	var advanced bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.sessionRepo.AdvanceMission(ctx, tx, sessionID, fromMissionID, toMissionID, time.Now())
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		if !ok {
			// Lost the race: another connection already moved the pointer
			return nil
		}
		// Every team starts the new phase at zero
		if _, err := s.trackerRepo.DeleteForMission(ctx, tx, sessionID, toMissionID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseDelete)
		}
		advanced = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !advanced {
		return false, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		// The advance is committed; only the broadcast payload is degraded
		s.log.Error("failed to reload session after advance",
			zap.Uint("session_id", sessionID), zap.Error(err))
		return true, nil
	}

	summary := missionSummary(session.CurrentMission)
	s.log.Info("session advanced",
		zap.String("join_code", session.JoinCode),
		zap.Uint("from_mission", fromMissionID),
		zap.Uint("to_mission", toMissionID))

	s.broadcaster.BroadcastToSession(session.JoinCode, EventMissionAdvanced, map[string]interface{}{
		"mission_data": summary,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
	return true, nil
}

func (s *progressionService) SaveTeacherScore(ctx context.Context, req *TeacherScoreRequest) (*TeacherScoreResult, error) {
	team, err := s.teamRepo.FindByID(ctx, req.TeamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrTeamNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	mission, err := s.missionRepo.FindByID(ctx, req.MissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrMissionNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	var updated int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.inputRepo.ApplyTeacherScore(ctx, tx, team.ID, mission.ID, req.Score)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate)
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("teacher score saved",
		zap.Uint("team_id", team.ID),
		zap.Uint("mission_id", mission.ID),
		zap.Int("score", req.Score),
		zap.Int64("inputs_updated", updated),
		zap.Uint("teacher_id", req.TeacherID))

	s.broadcaster.BroadcastToSession(team.Session.JoinCode, EventTeacherScoreUpdate, map[string]interface{}{
		"team_data": map[string]interface{}{
			"id":    team.ID,
			"name":  team.Name,
			"emoji": team.Emoji,
		},
		"mission_data": missionSummary(mission),
		"score":        req.Score,
		"teacher_id":   req.TeacherID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})

	return &TeacherScoreResult{InputsUpdated: updated}, nil
}

func (s *progressionService) thresholdFor(game *models.Game) int {
	if game.CompletionThresholdPercent > 0 && game.CompletionThresholdPercent <= 100 {
		return game.CompletionThresholdPercent
	}
	return s.defaultThreshold
}

func (s *progressionService) countdownFor(game *models.Game) int {
	if game.PhaseTransitionDelaySecs > 0 {
		return game.PhaseTransitionDelaySecs
	}
	return int(s.defaultCountdown.Seconds())
}

func missionSummary(m *models.Mission) *MissionSummary {
	if m == nil {
		return nil
	}
	return &MissionSummary{
		ID:          m.ID,
		Title:       m.Title,
		MissionType: m.MissionType,
		Order:       m.Order,
	}
}

// isUniqueViolation matches the constraint error text across the supported
// drivers (sqlite, mysql, postgres)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique failed")
}
