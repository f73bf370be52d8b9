package models

import (
	"time"
)

// Session statuses
const (
	SessionWaiting    = "waiting"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionAbandoned  = "abandoned"
)

// Session one live play-through of a game. The current mission pointer is
// the single source of truth for session progress; it only moves forward
// and only via a conditional update (see SessionRepository.AdvanceMission).
type Session struct {
	BaseModel
	GameID   uint   `gorm:"not null;index" json:"game_id"`
	JoinCode string `gorm:"uniqueIndex;size:10;not null" json:"join_code"`
	Status   string `gorm:"size:20;default:'waiting'" json:"status"`

	CurrentMissionID *uint      `gorm:"index" json:"current_mission_id,omitempty"`
	MissionStartedAt *time.Time `json:"mission_started_at,omitempty"`
	MissionEndedAt   *time.Time `json:"mission_ended_at,omitempty"`

	FacilitatorID *uint  `gorm:"index" json:"facilitator_id,omitempty"`
	Notes         string `gorm:"type:text" json:"-"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// 关联
	Game           Game     `gorm:"foreignKey:GameID" json:"game,omitempty"`
	CurrentMission *Mission `gorm:"foreignKey:CurrentMissionID" json:"current_mission,omitempty"`
	Teams          []Team   `gorm:"foreignKey:SessionID" json:"teams,omitempty"`
}

// IsTerminal reports whether the session can no longer accept inputs
func (s *Session) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// Team a named group of students inside one session. All team state lives
// here or in the tracking tables; nothing about a team depends on a live
// connection, so reconnects observe identical progress.
type Team struct {
	BaseModel
	SessionID uint   `gorm:"not null;index;uniqueIndex:idx_session_team_name" json:"session_id"`
	Name      string `gorm:"size:100;not null;uniqueIndex:idx_session_team_name" json:"name"`
	Emoji     string `gorm:"size:10;default:'💡'" json:"emoji"`
	Color     string `gorm:"size:7;default:'#3B82F6'" json:"color"`

	// Members is an ordered list of {"name": ..., "student_session_id": ...}
	Members JSONList `gorm:"type:json" json:"members"`

	MissionsCompleted int    `gorm:"default:0" json:"missions_completed"`
	TotalSubmissions  int    `gorm:"default:0" json:"total_submissions"`
	ProblemStatement  string `gorm:"type:text" json:"problem_statement"`
	TargetUser        string `gorm:"size:200" json:"target_user"`

	// 关联
	Session Session `gorm:"foreignKey:SessionID" json:"-"`
}

// Size returns the member count, never less than 1
func (t *Team) Size() int {
	if len(t.Members) == 0 {
		return 1
	}
	return len(t.Members)
}
