package models

// Mission types in play order
const (
	MissionKickoff   = "kickoff"
	MissionEmpathy   = "empathy"
	MissionDefine    = "define"
	MissionIdeate    = "ideate"
	MissionPrototype = "prototype"
	MissionShowcase  = "showcase"
)

// Game game template table. One row per authored game ("Design Thinking
// Challenge", "Constitution Challenge"); sessions reference it and inherit
// its progression settings.
type Game struct {
	BaseModel
	Name        string `gorm:"size:200;not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Description string `gorm:"size:500" json:"description"`
	Status      string `gorm:"size:20;default:'active'" json:"status"` // active, draft, disabled

	// Auto-progression settings
	AutoAdvanceEnabled         bool `gorm:"default:true" json:"auto_advance_enabled"`
	CompletionThresholdPercent int  `gorm:"default:100" json:"completion_threshold_percent"`
	PhaseTransitionDelaySecs   int  `gorm:"default:5" json:"phase_transition_delay_secs"`

	MentorPromptsEnabled bool `gorm:"default:true" json:"mentor_prompts_enabled"`

	// 关联
	Missions []Mission `gorm:"foreignKey:GameID" json:"missions,omitempty"`
}

// Mission one ordered step of a game. Immutable while sessions run; the
// order column defines the sequence and is unique per game.
type Mission struct {
	BaseModel
	GameID      uint   `gorm:"not null;index;uniqueIndex:idx_game_order" json:"game_id"`
	MissionType string `gorm:"size:20;not null" json:"mission_type"`
	Order       int    `gorm:"column:mission_order;not null;uniqueIndex:idx_game_order" json:"order"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Instructions string `gorm:"type:text" json:"instructions"`

	// InputSchema declares the expected inputs for this phase:
	// {"inputs": [{"type": "radio", "label": "...", "constraints": {...}}, ...]}
	InputSchema JSONMap `gorm:"type:json" json:"input_schema"`

	RequiresAllTeamMembers bool `gorm:"default:false" json:"requires_all_team_members"`
	EstimatedMinutes       int  `gorm:"default:15" json:"estimated_minutes"`
	IsActive               bool `gorm:"default:true" json:"is_active"`

	// 关联
	Game Game `gorm:"foreignKey:GameID" json:"game,omitempty"`
}

// TableName keeps "order" out of the SQL namespace
func (Mission) TableName() string {
	return "missions"
}

// SchemaInputCount returns the number of declared inputs, 0 if no schema
func (m *Mission) SchemaInputCount() int {
	if m.InputSchema == nil {
		return 0
	}
	inputs, ok := m.InputSchema["inputs"].([]interface{})
	if !ok {
		return 0
	}
	return len(inputs)
}

// DefaultRequiredInputs per mission type, used when a mission declares no
// input schema
var DefaultRequiredInputs = map[string]int{
	MissionEmpathy:   2,
	MissionDefine:    2,
	MissionIdeate:    4,
	MissionPrototype: 2,
	MissionShowcase:  2,
}
