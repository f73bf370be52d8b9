package service

import (
	"context"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
)

// ProgressionService drives the input → tracker → auto-advance pipeline
type ProgressionService interface {
	// ProcessPhaseInput validates and persists one student submission,
	// updates the team's completion tracker atomically with the save, and
	// evaluates auto-progression. Broadcasts happen after commit.
	ProcessPhaseInput(ctx context.Context, req *SubmitInputsRequest) (*SubmissionResult, error)
	// CheckAutoProgression decides whether the session should advance past
	// the given mission. Pure read, no mutation.
	CheckAutoProgression(ctx context.Context, session *models.Session, mission *models.Mission) (*AdvanceDecision, error)
	// ExecuteAutoAdvancement commits the phase transition exactly once.
	// Returns false without error when another writer advanced first.
	ExecuteAutoAdvancement(ctx context.Context, sessionID uint, fromMissionID, toMissionID uint) (bool, error)
	// SaveTeacherScore applies a facilitator score to every not-yet-scored
	// input of one team and mission.
	SaveTeacherScore(ctx context.Context, req *TeacherScoreRequest) (*TeacherScoreResult, error)
}

// SessionService manages session lifecycle and team rosters
type SessionService interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*models.Session, error)
	GetSessionByJoinCode(ctx context.Context, joinCode string) (*models.Session, error)
	GetSessionSnapshot(ctx context.Context, joinCode string) (*SessionSnapshot, error)
	StartSession(ctx context.Context, sessionID uint) error
	AbandonSession(ctx context.Context, sessionID uint) error
	CreateTeam(ctx context.Context, req *CreateTeamRequest) (*models.Team, error)
	ListTeams(ctx context.Context, sessionID uint) ([]*models.Team, error)
}

// AuthService facilitator accounts
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	GetProfile(ctx context.Context, facilitatorID uint) (*models.Facilitator, error)
}

// StudentData identifies the submitting student
type StudentData struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
}

// InputItem one answer inside a submission
type InputItem struct {
	Type      string `json:"type"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Order     int    `json:"order"`
	TimeTaken int    `json:"time_taken"`
}

// SubmitInputsRequest one student submission for one team and mission
type SubmitInputsRequest struct {
	TeamID      uint        `json:"team_id"`
	MissionID   uint        `json:"mission_id"`
	StudentData StudentData `json:"student_data"`
	InputData   []InputItem `json:"input_data"`
}

// CompletionStatus tracker state after an accepted submission
type CompletionStatus struct {
	TeamID           uint    `json:"team_id"`
	TeamName         string  `json:"team_name"`
	TeamEmoji        string  `json:"team_emoji"`
	CompletedInputs  int     `json:"completed_inputs"`
	RequiredInputs   int     `json:"required_inputs"`
	Percentage       float64 `json:"completion_percentage"`
	IsReadyToAdvance bool    `json:"is_ready_to_advance"`
}

// MissionSummary broadcast-friendly mission fields
type MissionSummary struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	MissionType string `json:"mission_type"`
	Order       int    `json:"order"`
}

// AdvanceDecision output of the auto-progression check
type AdvanceDecision struct {
	ShouldAdvance    bool            `json:"should_advance"`
	Reason           string          `json:"reason"`
	ReadyTeams       int             `json:"ready_teams"`
	TotalTeams       int             `json:"total_teams"`
	ThresholdPercent int             `json:"threshold_percent"`
	CurrentMission   *MissionSummary `json:"current_mission,omitempty"`
	NextMission      *MissionSummary `json:"next_mission,omitempty"`
	CountdownSeconds int             `json:"countdown_seconds"`
}

// SubmissionResult reply payload for an accepted submission
type SubmissionResult struct {
	InputsSaved int               `json:"inputs_saved"`
	Completion  *CompletionStatus `json:"completion"`
	Decision    *AdvanceDecision  `json:"decision,omitempty"`
}

// TeacherScoreRequest facilitator score for one team and mission
type TeacherScoreRequest struct {
	TeamID    uint `json:"team_id"`
	MissionID uint `json:"mission_id"`
	Score     int  `json:"score"`
	TeacherID uint `json:"teacher_id"`
}

// TeacherScoreResult number of inputs the score applied to
type TeacherScoreResult struct {
	InputsUpdated int64 `json:"inputs_updated"`
}

// CreateSessionRequest starts a session from a game template
type CreateSessionRequest struct {
	GameSlug      string `json:"game_slug" binding:"required"`
	FacilitatorID uint   `json:"-"`
}

// CreateTeamRequest adds a team to a session
type CreateTeamRequest struct {
	JoinCode string       `json:"-"`
	Name     string       `json:"name" binding:"required,max=100"`
	Emoji    string       `json:"emoji"`
	Color    string       `json:"color"`
	Members  []TeamMember `json:"members"`
}

// TeamMember roster entry
type TeamMember struct {
	Name             string `json:"name"`
	StudentSessionID string `json:"student_session_id"`
}

// TeamSnapshot roster entry inside a session snapshot
type TeamSnapshot struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Emoji            string  `json:"emoji"`
	Color            string  `json:"color"`
	MemberCount      int     `json:"member_count"`
	Percentage       float64 `json:"completion_percentage"`
	IsReadyToAdvance bool    `json:"is_ready_to_advance"`
}

// SessionSnapshot full session state sent on join and reconnect
type SessionSnapshot struct {
	JoinCode           string          `json:"join_code"`
	Status             string          `json:"status"`
	GameName           string          `json:"game_name"`
	AutoAdvanceEnabled bool            `json:"auto_advance_enabled"`
	ThresholdPercent   int             `json:"threshold_percent"`
	CurrentMission     *MissionSummary `json:"current_mission,omitempty"`
	MissionStartedAt   *time.Time      `json:"mission_started_at,omitempty"`
	Teams              []TeamSnapshot  `json:"teams"`
}

// RegisterRequest facilitator sign-up
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=8"`
	School   string `json:"school"`
}

// LoginRequest facilitator sign-in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse token pair plus profile
type AuthResponse struct {
	Facilitator  *models.Facilitator `json:"facilitator"`
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresIn    int64               `json:"expires_in"`
	TokenType    string              `json:"token_type"`
}
