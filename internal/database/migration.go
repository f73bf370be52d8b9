package database

import (
	"fmt"

	"github.com/decipherworld/classroom-server/internal/logger"
	"github.com/decipherworld/classroom-server/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate creates or updates the schema
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	CleanupStaleLocks()

	// Hold a file lock so two processes never migrate concurrently
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("could not acquire migration lock", zap.Error(err))
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	migrationModels := []interface{}{
		// Accounts
		&models.Facilitator{},

		// Game content
		&models.Game{},
		&models.Mission{},

		// Live play
		&models.Session{},
		&models.Team{},
		&models.PhaseInput{},
		&models.CompletionTracker{},
		&models.TeamProgress{},
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("migration failed",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err))
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}

	logger.Info("database migration complete",
		zap.Int("models", len(migrationModels)))

	return nil
}
