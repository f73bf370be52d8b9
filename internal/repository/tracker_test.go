package repository

import (
	"context"
	"testing"

	"github.com/decipherworld/classroom-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionTrackerRepository_GetOrCreate(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewCompletionTrackerRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	tracker, created, err := repo.GetOrCreate(ctx, db, session.ID, team.ID, mission.ID, 4)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 4, tracker.TotalRequiredInputs)
	assert.Equal(t, 0, tracker.CompletedInputs)
	assert.False(t, tracker.IsReadyToAdvance)

	// Second call returns the same row
	again, created, err := repo.GetOrCreate(ctx, db, session.ID, team.ID, mission.ID, 99)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tracker.ID, again.ID)
	assert.Equal(t, 4, again.TotalRequiredInputs)
}

func TestCompletionTrackerRepository_SaveRecomputesStatus(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewCompletionTrackerRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	tracker, _, err := repo.GetOrCreate(ctx, db, session.ID, team.ID, mission.ID, 4)
	require.NoError(t, err)

	tracker.CompletedInputs = 2
	becameReady := tracker.UpdateCompletionStatus()
	assert.False(t, becameReady)
	assert.Equal(t, 50.0, tracker.CompletionPercent)
	require.NoError(t, repo.Save(ctx, db, tracker))

	tracker.CompletedInputs = 4
	becameReady = tracker.UpdateCompletionStatus()
	assert.True(t, becameReady)
	assert.Equal(t, 100.0, tracker.CompletionPercent)
	assert.NotNil(t, tracker.CompletedAt)
	require.NoError(t, repo.Save(ctx, db, tracker))

	// Ready state is monotone: extra inputs do not re-trigger readiness
	tracker.CompletedInputs = 6
	becameReady = tracker.UpdateCompletionStatus()
	assert.False(t, becameReady)
	assert.Equal(t, 100.0, tracker.CompletionPercent)

	found, err := repo.Find(ctx, session.ID, team.ID, mission.ID)
	require.NoError(t, err)
	assert.True(t, found.IsReadyToAdvance)
}

func TestCompletionTrackerRepository_CountReady(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewCompletionTrackerRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	pandas := teamByName(t, db, "Red Pandas")
	foxes := teamByName(t, db, "Blue Foxes")
	mission := missionByOrder(t, db, 2)

	ready, _, err := repo.GetOrCreate(ctx, db, session.ID, pandas.ID, mission.ID, 2)
	require.NoError(t, err)
	ready.CompletedInputs = 2
	ready.UpdateCompletionStatus()
	require.NoError(t, repo.Save(ctx, db, ready))

	pending, _, err := repo.GetOrCreate(ctx, db, session.ID, foxes.ID, mission.ID, 2)
	require.NoError(t, err)
	pending.CompletedInputs = 1
	pending.UpdateCompletionStatus()
	require.NoError(t, repo.Save(ctx, db, pending))

	count, err := repo.CountReady(ctx, session.ID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCompletionTrackerRepository_DeleteForMission(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)
	repo := NewCompletionTrackerRepository(db)
	ctx := context.Background()

	session := seededSession(t, db)
	pandas := teamByName(t, db, "Red Pandas")
	foxes := teamByName(t, db, "Blue Foxes")
	empathy := missionByOrder(t, db, 2)
	define := missionByOrder(t, db, 3)

	for _, teamID := range []uint{pandas.ID, foxes.ID} {
		_, _, err := repo.GetOrCreate(ctx, db, session.ID, teamID, define.ID, 2)
		require.NoError(t, err)
	}
	_, _, err := repo.GetOrCreate(ctx, db, session.ID, pandas.ID, empathy.ID, 2)
	require.NoError(t, err)

	deleted, err := repo.DeleteForMission(ctx, db, session.ID, define.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// Old-mission trackers stay untouched
	remaining, err := repo.ListBySessionAndMission(ctx, session.ID, empathy.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	cleared, err := repo.ListBySessionAndMission(ctx, session.ID, define.ID)
	require.NoError(t, err)
	assert.Len(t, cleared, 0)

	// Re-entry after the wipe starts a fresh tracker at zero
	fresh, created, err := repo.GetOrCreate(ctx, db, session.ID, pandas.ID, define.ID, 2)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 0, fresh.CompletedInputs)
}

func TestCompletionTrackerRepository_UniqueTriple(t *testing.T) {
	db := TestDB(t)
	defer CleanupTestDB(db)
	SeedTestData(t, db)

	session := seededSession(t, db)
	team := teamByName(t, db, "Red Pandas")
	mission := missionByOrder(t, db, 2)

	first := models.CompletionTracker{
		SessionID:           session.ID,
		TeamID:              team.ID,
		MissionID:           mission.ID,
		TotalRequiredInputs: 2,
	}
	require.NoError(t, db.Create(&first).Error)

	dup := models.CompletionTracker{
		SessionID:           session.ID,
		TeamID:              team.ID,
		MissionID:           mission.ID,
		TotalRequiredInputs: 2,
	}
	err := db.Create(&dup).Error
	assert.Error(t, err)
}
