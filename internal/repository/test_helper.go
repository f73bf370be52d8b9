package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB creates an in-memory test database with the full schema migrated.
func TestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		// accounts
		&models.Facilitator{},

		// game catalog
		&models.Game{},
		&models.Mission{},

		// live sessions
		&models.Session{},
		&models.Team{},

		// progression
		&models.PhaseInput{},
		&models.CompletionTracker{},
		&models.TeamProgress{},
	)
	require.NoError(t, err)

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

func schemaWithInputs(n int) models.JSONMap {
	inputs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		inputs = append(inputs, map[string]interface{}{
			"type":  models.InputTextShort,
			"label": fmt.Sprintf("Question %d", i+1),
		})
	}
	return models.JSONMap{"inputs": inputs}
}

// SeedTestData creates a game with missions, a running session and two teams
func SeedTestData(t *testing.T, db *gorm.DB) {
	facilitator := models.Facilitator{
		Email:        "teacher@example.com",
		Name:         "Test Teacher",
		PasswordHash: "$2a$10$testhashtesthashtesthashte",
		School:       "Test School",
		Status:       "active",
	}
	err := db.Create(&facilitator).Error
	require.NoError(t, err)

	game := models.Game{
		Name:                       "Design Sprint",
		Slug:                       "design-sprint",
		Description:                "Five phase design thinking game",
		AutoAdvanceEnabled:         true,
		CompletionThresholdPercent: 100,
		PhaseTransitionDelaySecs:   5,
		Status:                     "active",
	}
	err = db.Create(&game).Error
	require.NoError(t, err)

	missions := []models.Mission{
		{
			GameID:      game.ID,
			MissionType: models.MissionKickoff,
			Order:       1,
			Title:       "Kickoff",
			IsActive:    true,
		},
		{
			GameID:      game.ID,
			MissionType: models.MissionEmpathy,
			Order:       2,
			Title:       "Empathy",
			InputSchema: schemaWithInputs(2),
			IsActive:    true,
		},
		{
			GameID:      game.ID,
			MissionType: models.MissionDefine,
			Order:       3,
			Title:       "Define",
			InputSchema: schemaWithInputs(2),
			IsActive:    true,
		},
		{
			GameID:      game.ID,
			MissionType: models.MissionIdeate,
			Order:       4,
			Title:       "Ideate",
			InputSchema: schemaWithInputs(4),
			IsActive:    true,
		},
	}
	err = db.Create(&missions).Error
	require.NoError(t, err)

	now := time.Now()
	session := models.Session{
		GameID:           game.ID,
		FacilitatorID:    &facilitator.ID,
		JoinCode:         "ABC123",
		Status:           models.SessionInProgress,
		CurrentMissionID: &missions[1].ID,
		MissionStartedAt: &now,
		StartedAt:        &now,
	}
	err = db.Create(&session).Error
	require.NoError(t, err)

	teams := []models.Team{
		{
			SessionID: session.ID,
			Name:      "Red Pandas",
			Emoji:     "🐼",
			Color:     "#EF4444",
			Members: models.JSONList{
				map[string]interface{}{"name": "Asha", "student_session_id": "stu-001"},
				map[string]interface{}{"name": "Ben", "student_session_id": "stu-002"},
			},
		},
		{
			SessionID: session.ID,
			Name:      "Blue Foxes",
			Emoji:     "🦊",
			Color:     "#3B82F6",
			Members: models.JSONList{
				map[string]interface{}{"name": "Carla", "student_session_id": "stu-003"},
			},
		},
	}
	err = db.Create(&teams).Error
	require.NoError(t, err)
}

// AssertSession verifies the core session fields
func AssertSession(t *testing.T, expected, actual *models.Session) {
	assert.Equal(t, expected.GameID, actual.GameID)
	assert.Equal(t, expected.JoinCode, actual.JoinCode)
	assert.Equal(t, expected.Status, actual.Status)
}

// AssertTracker verifies the completion tracker fields
func AssertTracker(t *testing.T, expected, actual *models.CompletionTracker) {
	assert.Equal(t, expected.SessionID, actual.SessionID)
	assert.Equal(t, expected.TeamID, actual.TeamID)
	assert.Equal(t, expected.MissionID, actual.MissionID)
	assert.Equal(t, expected.CompletedInputs, actual.CompletedInputs)
}

// CreateTestPhaseInput builds an active phase input for one student answer
func CreateTestPhaseInput(sessionID, teamID, missionID uint, studentSessionID string, seq int) *models.PhaseInput {
	return &models.PhaseInput{
		SessionID:        sessionID,
		TeamID:           teamID,
		MissionID:        missionID,
		StudentName:      "Student " + studentSessionID,
		StudentSessionID: studentSessionID,
		InputType:        models.InputTextShort,
		InputLabel:       fmt.Sprintf("Question %d", seq),
		SelectedValue:    fmt.Sprintf("Answer %d", seq),
		InputOrder:       seq,
		IsActive:         true,
	}
}

func seededSession(t *testing.T, db *gorm.DB) *models.Session {
	var session models.Session
	require.NoError(t, db.First(&session).Error)
	return &session
}

func teamByName(t *testing.T, db *gorm.DB, name string) *models.Team {
	var team models.Team
	require.NoError(t, db.Where("name = ?", name).First(&team).Error)
	return &team
}

func missionByOrder(t *testing.T, db *gorm.DB, order int) *models.Mission {
	var mission models.Mission
	require.NoError(t, db.Where("mission_order = ?", order).First(&mission).Error)
	return &mission
}
