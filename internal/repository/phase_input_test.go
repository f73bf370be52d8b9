package repository

import (
	"context"
	"testing"

	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseInputRepository_CreateBatch(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewPhaseInputRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	inputs := []*models.PhaseInput{
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 1),
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 2),
	}
	err := repo.CreateBatch(ctx, db, inputs)
	require.NoError(t, err)

	count, err := repo.CountActive(ctx, team.ID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	listed, err := repo.ListByTeamAndMission(ctx, team.ID, mission.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Question 1", listed[0].InputLabel)
	assert.Equal(t, "Question 2", listed[1].InputLabel)
}

func TestPhaseInputRepository_ActiveExists(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewPhaseInputRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	exists, err := repo.ActiveExists(ctx, team.ID, mission.ID, "stu-001")
	require.NoError(t, err)
	assert.False(t, exists)

	err = repo.CreateBatch(ctx, db, []*models.PhaseInput{
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 1),
	})
	require.NoError(t, err)

	exists, err = repo.ActiveExists(ctx, team.ID, mission.ID, "stu-001")
	require.NoError(t, err)
	assert.True(t, exists)

	// A different student on the same team is not a duplicate
	exists, err = repo.ActiveExists(ctx, team.ID, mission.ID, "stu-002")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPhaseInputRepository_InvalidateForTeamAndMission(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewPhaseInputRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	err := repo.CreateBatch(ctx, db, []*models.PhaseInput{
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 1),
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-002", 1),
	})
	require.NoError(t, err)

	invalidated, err := repo.InvalidateForTeamAndMission(ctx, db, team.ID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), invalidated)

	count, err := repo.CountActive(ctx, team.ID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// After invalidation the same student may submit again
	exists, err := repo.ActiveExists(ctx, team.ID, mission.ID, "stu-001")
	require.NoError(t, err)
	assert.False(t, exists)

	err = repo.CreateBatch(ctx, db, []*models.PhaseInput{
		CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 1),
	})
	require.NoError(t, err)
}

func TestPhaseInputRepository_ApplyTeacherScore(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewPhaseInputRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	scored := CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-001", 1)
	existing := 3
	scored.TeacherScore = &existing
	unscored := CreateTestPhaseInput(session.ID, team.ID, mission.ID, "stu-002", 1)

	err := repo.CreateBatch(ctx, db, []*models.PhaseInput{scored, unscored})
	require.NoError(t, err)

	applied, err := repo.ApplyTeacherScore(ctx, db, team.ID, mission.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), applied)

	listed, err := repo.ListByTeamAndMission(ctx, team.ID, mission.ID)
	require.NoError(t, err)
	for _, input := range listed {
		require.NotNil(t, input.TeacherScore)
		switch input.StudentSessionID {
		case "stu-001":
			assert.Equal(t, 3, *input.TeacherScore)
		case "stu-002":
			assert.Equal(t, 5, *input.TeacherScore)
			assert.NotNil(t, input.ScoredAt)
		}
	}
}
