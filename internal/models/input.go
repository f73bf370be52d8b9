package models

import (
	"math"
	"time"
)

// Input types accepted from students
const (
	InputRadio      = "radio"
	InputDropdown   = "dropdown"
	InputCheckbox   = "checkbox"
	InputTextShort  = "text_short"
	InputTextMedium = "text_medium"
	InputRating     = "rating"
)

// ValidInputTypes closed enumeration for submission validation
var ValidInputTypes = map[string]bool{
	InputRadio:      true,
	InputDropdown:   true,
	InputCheckbox:   true,
	InputTextShort:  true,
	InputTextMedium: true,
	InputRating:     true,
}

// PhaseInput one atomic student answer for one mission. Inputs are never
// hard-deleted: a phase reset flips is_active instead, so the admin layer
// keeps the full history. The partial unique index is the store-level
// duplicate-submission guard; the application check in the validator only
// produces the friendlier error message.
type PhaseInput struct {
	BaseModel
	TeamID    uint `gorm:"not null;index;uniqueIndex:idx_active_submission,where:is_active" json:"team_id"`
	MissionID uint `gorm:"not null;index;uniqueIndex:idx_active_submission,where:is_active" json:"mission_id"`
	SessionID uint `gorm:"not null;index" json:"session_id"`

	StudentName      string `gorm:"size:100;not null" json:"student_name"`
	StudentSessionID string `gorm:"size:100;not null;uniqueIndex:idx_active_submission,where:is_active" json:"student_session_id"`

	InputType     string `gorm:"size:20;not null" json:"input_type"`
	InputLabel    string `gorm:"size:200;not null" json:"input_label"`
	SelectedValue string `gorm:"size:500;not null" json:"selected_value"`
	// InputOrder is assigned sequentially per submission, so one student's
	// batch fits under the active-row uniqueness while a second batch for
	// the same phase collides on order 1
	InputOrder       int `gorm:"not null;uniqueIndex:idx_active_submission,where:is_active" json:"input_order"`
	TimeTakenSeconds int    `gorm:"default:0" json:"time_taken_seconds"`

	TeacherScore *int       `json:"teacher_score,omitempty"`
	ScoredAt     *time.Time `json:"scored_at,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Team    Team    `gorm:"foreignKey:TeamID" json:"-"`
	Mission Mission `gorm:"foreignKey:MissionID" json:"-"`
}

// CompletionTracker per-(session, team, mission) progress counter.
// completed_inputs only ever grows and is_ready_to_advance never flips back;
// completion_percent is always derived from the two counts.
type CompletionTracker struct {
	BaseModel
	SessionID uint `gorm:"not null;index;uniqueIndex:idx_tracker_triple" json:"session_id"`
	TeamID    uint `gorm:"not null;index;uniqueIndex:idx_tracker_triple" json:"team_id"`
	MissionID uint `gorm:"not null;index;uniqueIndex:idx_tracker_triple" json:"mission_id"`

	TotalRequiredInputs int     `gorm:"not null;default:1" json:"total_required_inputs"`
	CompletedInputs     int     `gorm:"not null;default:0" json:"completed_inputs"`
	CompletionPercent   float64 `gorm:"not null;default:0" json:"completion_percent"`
	IsReadyToAdvance    bool    `gorm:"not null;default:false" json:"is_ready_to_advance"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// UpdateCompletionStatus recomputes the derived fields from the counters.
// The stored percentage is clamped to 100 and rounded to the nearest
// whole number; readiness comes from the raw counts, so a percentage
// that merely rounds up to 100 never marks the tracker ready.
// Returns true when the tracker just became ready.
func (t *CompletionTracker) UpdateCompletionStatus() bool {
	if t.TotalRequiredInputs <= 0 {
		t.TotalRequiredInputs = 1
	}
	percent := float64(t.CompletedInputs) / float64(t.TotalRequiredInputs) * 100
	if percent > 100 {
		percent = 100
	}
	t.CompletionPercent = math.Round(percent)

	becameReady := false
	if t.CompletedInputs >= t.TotalRequiredInputs && !t.IsReadyToAdvance {
		t.IsReadyToAdvance = true
		now := time.Now()
		t.CompletedAt = &now
		becameReady = true
	}
	return becameReady
}

// TeamProgress per-mission progress record for reporting. Written alongside
// the tracker but kept after phase advancement, unlike trackers which are
// cleared for the new mission.
type TeamProgress struct {
	BaseModel
	SessionID uint `gorm:"not null;index;uniqueIndex:idx_progress_triple" json:"session_id"`
	TeamID    uint `gorm:"not null;index;uniqueIndex:idx_progress_triple" json:"team_id"`
	MissionID uint `gorm:"not null;index;uniqueIndex:idx_progress_triple" json:"mission_id"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	IsCompleted bool       `gorm:"default:false" json:"is_completed"`

	SubmissionCount      int  `gorm:"default:0" json:"submission_count"`
	FacilitatorSpotlight bool `gorm:"default:false" json:"facilitator_spotlight"`
}
