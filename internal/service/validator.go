package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/decipherworld/classroom-server/internal/repository"
	"gorm.io/gorm"
)

const (
	maxStudentFieldLen = 100
	maxLabelLen        = 200
	maxValueLen        = 500
	maxShortTextLen    = 50
	maxMediumTextLen   = 200
	minRating          = 1
	maxRating          = 5
)

// ValidatedSubmission entities resolved during validation, so the caller
// never re-fetches them
type ValidatedSubmission struct {
	Team    *models.Team
	Mission *models.Mission
	Session *models.Session
}

// InputValidator runs the ordered submission checks. Pure check: it reads
// the store but never writes.
type InputValidator struct {
	teamRepo    repository.TeamRepository
	missionRepo repository.MissionRepository
	inputRepo   repository.PhaseInputRepository
	maxInputs   int
}

// NewInputValidator creates a validator
func NewInputValidator(
	teamRepo repository.TeamRepository,
	missionRepo repository.MissionRepository,
	inputRepo repository.PhaseInputRepository,
	maxInputs int,
) *InputValidator {
	if maxInputs <= 0 {
		maxInputs = 10
	}
	return &InputValidator{
		teamRepo:    teamRepo,
		missionRepo: missionRepo,
		inputRepo:   inputRepo,
		maxInputs:   maxInputs,
	}
}

// Validate runs every check in order and resolves the submission's entities.
// Validation failures are terminal (retry_allowed=false); store failures are
// wrapped as retryable database errors.
func (v *InputValidator) Validate(ctx context.Context, req *SubmitInputsRequest) (*ValidatedSubmission, error) {
	// 1. Parameters present
	if req == nil || req.TeamID == 0 || req.MissionID == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "team_id and mission_id are required")
	}

	// 2. Entities exist and belong to the same game
	team, err := v.teamRepo.FindByID(ctx, req.TeamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrTeamNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	mission, err := v.missionRepo.FindByID(ctx, req.MissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrMissionNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if team.Session.GameID != mission.GameID {
		return nil, apperrors.New(apperrors.ErrGameMismatch)
	}

	// 3. Student identity
	if req.StudentData.Name == "" || len(req.StudentData.Name) > maxStudentFieldLen {
		return nil, apperrors.New(apperrors.ErrInvalidStudentData,
			fmt.Sprintf("student name must be 1-%d characters", maxStudentFieldLen))
	}
	if req.StudentData.SessionID == "" || len(req.StudentData.SessionID) > maxStudentFieldLen {
		return nil, apperrors.New(apperrors.ErrInvalidStudentData,
			fmt.Sprintf("student session id must be 1-%d characters", maxStudentFieldLen))
	}

	// 4. Input list bounds
	if len(req.InputData) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInputData, "input list is empty")
	}
	if len(req.InputData) > v.maxInputs {
		return nil, apperrors.New(apperrors.ErrInvalidInputData,
			fmt.Sprintf("at most %d inputs per submission", v.maxInputs))
	}

	// 5. Per-item checks
	for i, item := range req.InputData {
		if err := validateInputItem(i, item); err != nil {
			return nil, err
		}
	}

	// 6. Idempotent-submission guard. The store's uniqueness constraint on
	// active rows closes the race; this check only produces the friendly
	// message.
	exists, err := v.inputRepo.ActiveExists(ctx, team.ID, mission.ID, req.StudentData.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if exists {
		return nil, apperrors.New(apperrors.ErrDuplicateSubmission)
	}

	// 7. No backward submissions
	if team.Session.CurrentMission != nil && mission.Order < team.Session.CurrentMission.Order {
		return nil, apperrors.New(apperrors.ErrPastPhase,
			fmt.Sprintf("mission order %d is behind current order %d",
				mission.Order, team.Session.CurrentMission.Order))
	}

	return &ValidatedSubmission{
		Team:    team,
		Mission: mission,
		Session: &team.Session,
	}, nil
}

func validateInputItem(index int, item InputItem) error {
	if !models.ValidInputTypes[item.Type] {
		return apperrors.New(apperrors.ErrInvalidInputType,
			fmt.Sprintf("item %d: unknown input type %q", index, item.Type))
	}
	if item.Label == "" || len(item.Label) > maxLabelLen {
		return apperrors.New(apperrors.ErrInvalidInputData,
			fmt.Sprintf("item %d: label must be 1-%d characters", index, maxLabelLen))
	}
	if item.Value == "" || len(item.Value) > maxValueLen {
		return apperrors.New(apperrors.ErrInputValueTooLong,
			fmt.Sprintf("item %d: value must be 1-%d characters", index, maxValueLen))
	}

	switch item.Type {
	case models.InputTextShort:
		if len(item.Value) > maxShortTextLen {
			return apperrors.New(apperrors.ErrInputValueTooLong,
				fmt.Sprintf("item %d: short text limited to %d characters", index, maxShortTextLen))
		}
	case models.InputTextMedium:
		if len(item.Value) > maxMediumTextLen {
			return apperrors.New(apperrors.ErrInputValueTooLong,
				fmt.Sprintf("item %d: medium text limited to %d characters", index, maxMediumTextLen))
		}
	case models.InputRating:
		rating, err := strconv.Atoi(item.Value)
		if err != nil || rating < minRating || rating > maxRating {
			return apperrors.New(apperrors.ErrInvalidRating,
				fmt.Sprintf("item %d: got %q", index, item.Value))
		}
	}
	return nil
}
