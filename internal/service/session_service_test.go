package service

import (
	"context"
	"testing"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SessionServiceTestSuite exercises session lifecycle and team rosters
type SessionServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	services *Services
	ctx      context.Context
	game     *models.Game
	missions []*models.Mission
}

func (suite *SessionServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = db.AutoMigrate(
		&models.Facilitator{},
		&models.Game{},
		&models.Mission{},
		&models.Session{},
		&models.Team{},
		&models.PhaseInput{},
		&models.CompletionTracker{},
		&models.TeamProgress{},
	)
	suite.Require().NoError(err)

	suite.db = db
	suite.services = NewServices(db, DefaultConfig(), nil, zap.NewNop())
	suite.ctx = context.Background()

	suite.game = &models.Game{
		Name:                       "Design Sprint",
		Slug:                       "design-sprint",
		Status:                     "active",
		AutoAdvanceEnabled:         true,
		CompletionThresholdPercent: 100,
		PhaseTransitionDelaySecs:   5,
	}
	suite.Require().NoError(db.Create(suite.game).Error)

	for i, mtype := range []string{models.MissionKickoff, models.MissionEmpathy, models.MissionDefine} {
		m := &models.Mission{
			GameID:      suite.game.ID,
			MissionType: mtype,
			Order:       i + 1,
			Title:       mtype,
			IsActive:    true,
		}
		suite.Require().NoError(db.Create(m).Error)
		suite.missions = append(suite.missions, m)
	}
}

func (suite *SessionServiceTestSuite) TearDownTest() {
	suite.missions = nil
}

func (suite *SessionServiceTestSuite) TestCreateSession() {
	session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().NoError(err)
	suite.Len(session.JoinCode, 6)
	suite.Equal(models.SessionWaiting, session.Status)
	suite.Require().NotNil(session.CurrentMissionID)
	suite.Equal(suite.missions[0].ID, *session.CurrentMissionID)
}

func (suite *SessionServiceTestSuite) TestCreateSession_UnknownGame() {
	_, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "no-such-game",
	})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))
}

func (suite *SessionServiceTestSuite) TestCreateSession_InactiveGame() {
	suite.Require().NoError(suite.db.Model(suite.game).Update("status", "draft").Error)

	_, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))
}

func (suite *SessionServiceTestSuite) TestCreateTeam() {
	session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().NoError(err)

	team, err := suite.services.Session.CreateTeam(suite.ctx, &CreateTeamRequest{
		JoinCode: session.JoinCode,
		Name:     "Red Pandas",
		Emoji:    "🐼",
		Members: []TeamMember{
			{Name: "Asha", StudentSessionID: "stu-001"},
			{Name: "Ben", StudentSessionID: "stu-002"},
		},
	})
	suite.Require().NoError(err)
	suite.Equal("Red Pandas", team.Name)
	suite.Equal(2, team.Size())

	// Same name in the same session is rejected
	_, err = suite.services.Session.CreateTeam(suite.ctx, &CreateTeamRequest{
		JoinCode: session.JoinCode,
		Name:     "Red Pandas",
	})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrTeamNameTaken))
}

func (suite *SessionServiceTestSuite) TestCreateTeam_TerminalSession() {
	session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.services.Session.AbandonSession(suite.ctx, session.ID))

	_, err = suite.services.Session.CreateTeam(suite.ctx, &CreateTeamRequest{
		JoinCode: session.JoinCode,
		Name:     "Late Arrivals",
	})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrSessionEnded))
}

func (suite *SessionServiceTestSuite) TestStartAndAbandonSession() {
	session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.services.Session.StartSession(suite.ctx, session.ID))
	started, err := suite.services.Session.GetSessionByJoinCode(suite.ctx, session.JoinCode)
	suite.Require().NoError(err)
	suite.Equal(models.SessionInProgress, started.Status)
	suite.NotNil(started.StartedAt)

	// Starting twice is a no-op
	suite.Require().NoError(suite.services.Session.StartSession(suite.ctx, session.ID))

	suite.Require().NoError(suite.services.Session.AbandonSession(suite.ctx, session.ID))
	err = suite.services.Session.StartSession(suite.ctx, session.ID)
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrSessionEnded))
}

func (suite *SessionServiceTestSuite) TestGetSessionSnapshot() {
	session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
		GameSlug: "design-sprint",
	})
	suite.Require().NoError(err)

	_, err = suite.services.Session.CreateTeam(suite.ctx, &CreateTeamRequest{
		JoinCode: session.JoinCode,
		Name:     "Red Pandas",
		Members:  []TeamMember{{Name: "Asha", StudentSessionID: "stu-001"}},
	})
	suite.Require().NoError(err)

	// One team halfway through the current mission
	team, err := suite.services.Session.CreateTeam(suite.ctx, &CreateTeamRequest{
		JoinCode: session.JoinCode,
		Name:     "Blue Foxes",
		Members:  []TeamMember{{Name: "Carla", StudentSessionID: "stu-003"}},
	})
	suite.Require().NoError(err)
	tracker := &models.CompletionTracker{
		SessionID:           session.ID,
		TeamID:              team.ID,
		MissionID:           *session.CurrentMissionID,
		TotalRequiredInputs: 2,
		CompletedInputs:     1,
		CompletionPercent:   50,
	}
	suite.Require().NoError(suite.db.Create(tracker).Error)

	snapshot, err := suite.services.Session.GetSessionSnapshot(suite.ctx, session.JoinCode)
	suite.Require().NoError(err)
	suite.Equal(session.JoinCode, snapshot.JoinCode)
	suite.Equal("Design Sprint", snapshot.GameName)
	suite.True(snapshot.AutoAdvanceEnabled)
	suite.Require().NotNil(snapshot.CurrentMission)
	suite.Equal(models.MissionKickoff, snapshot.CurrentMission.MissionType)
	suite.Require().Len(snapshot.Teams, 2)

	byName := map[string]TeamSnapshot{}
	for _, ts := range snapshot.Teams {
		byName[ts.Name] = ts
	}
	suite.Equal(0.0, byName["Red Pandas"].Percentage)
	suite.Equal(50.0, byName["Blue Foxes"].Percentage)
}

func (suite *SessionServiceTestSuite) TestGetSessionSnapshot_UnknownCode() {
	_, err := suite.services.Session.GetSessionSnapshot(suite.ctx, "NOPE00")
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrSessionNotFound))
}

func (suite *SessionServiceTestSuite) TestJoinCodesAreUnique() {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		session, err := suite.services.Session.CreateSession(suite.ctx, &CreateSessionRequest{
			GameSlug: "design-sprint",
		})
		suite.Require().NoError(err)
		suite.False(seen[session.JoinCode], "join code %s repeated", session.JoinCode)
		seen[session.JoinCode] = true
	}
}

func TestSessionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceTestSuite))
}
